package session

const subscriberBuffer = 16

// Subscribe returns a channel that receives the current state at once and
// every later state. A subscriber that falls behind is dropped and its
// channel closed. cancel is safe to call more than once.
func (g *Game) Subscribe() (<-chan State, func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan State, subscriberBuffer)
	id := g.nextSub
	g.nextSub++
	g.subs[id] = ch
	ch <- g.state()
	return ch, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if c, ok := g.subs[id]; ok {
			close(c)
			delete(g.subs, id)
		}
	}
}

// publish bumps the version and fans the state out. Callers hold g.mu.
func (g *Game) publish() {
	g.version++
	st := g.state()
	for id, ch := range g.subs {
		select {
		case ch <- st:
		default:
			close(ch)
			delete(g.subs, id)
		}
	}
}

func (g *Game) closeSubscribers() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, ch := range g.subs {
		close(ch)
		delete(g.subs, id)
	}
}

func (g *Game) subscriberCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}
