package judge

import (
	"math/rand"
	"sync"
	"time"

	"blackjack-mcp/server/agent"
	"blackjack-mcp/server/engine"
)

const (
	Solver         = "MCJudge"
	defaultSamples = 2000
	defaultDecks   = 6
	// epsilon in units of the current bet
	defaultEpsilon = 0.02
)

// Eval compares the chosen action's EV with the best legal one.
type Eval struct {
	EVs       map[engine.ActionKind]float64 `json:"evs"`
	Best      engine.ActionKind             `json:"best_action"`
	Chosen    engine.ActionKind             `json:"chosen_action"`
	EVChosen  float64                       `json:"ev_chosen"`
	EVBest    float64                       `json:"ev_best"`
	Gap       float64                       `json:"ev_gap"`
	IsTop     bool                          `json:"is_top_action"`
	Samples   int                           `json:"samples"`
	ComputeMS int                           `json:"compute_ms"`
}

// Judge estimates per-action EV by playing the hand out many times against
// the cards that are still unseen. After a hit the hand continues with basic
// strategy. With peek on, hole cards that would give the dealer blackjack
// are redrawn, since play would never have reached the decision.
type Judge struct {
	Samples int
	Decks   int
	Peek    bool
	Epsilon float64

	mu  sync.Mutex
	rng *rand.Rand
}

func New(samples, decks int, peek bool, seed int64) *Judge {
	if samples <= 0 {
		samples = defaultSamples
	}
	if decks <= 0 {
		decks = defaultDecks
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Judge{Samples: samples, Decks: decks, Peek: peek, Epsilon: defaultEpsilon, rng: rand.New(rand.NewSource(seed))}
}

// EVs estimates the EV of each legal action in v, per unit of bet.
func (j *Judge) EVs(v engine.View) map[engine.ActionKind]float64 {
	j.mu.Lock()
	defer j.mu.Unlock()

	legal := v.Legal
	if len(legal) == 0 {
		legal = []engine.ActionKind{engine.Hit, engine.Stand}
	}
	unseen := j.unseen(v)
	out := make(map[engine.ActionKind]float64, len(legal))
	for _, a := range legal {
		var sum float64
		for i := 0; i < j.Samples; i++ {
			sum += j.playOut(v, a, unseen)
		}
		out[a] = sum / float64(j.Samples)
	}
	return out
}

// Evaluate grades chosen against the best action for v.
func (j *Judge) Evaluate(v engine.View, chosen engine.ActionKind) Eval {
	t0 := time.Now()
	evs := j.EVs(v)
	e := Eval{EVs: evs, Chosen: chosen, Samples: j.Samples}
	first := true
	for _, a := range []engine.ActionKind{engine.Stand, engine.Hit, engine.DoubleDown} {
		ev, ok := evs[a]
		if !ok {
			continue
		}
		if first || ev > e.EVBest {
			e.Best, e.EVBest, first = a, ev, false
		}
	}
	e.EVChosen = evs[chosen]
	e.Gap = e.EVBest - e.EVChosen
	e.IsTop = e.Gap <= j.Epsilon
	e.ComputeMS = int(time.Since(t0) / time.Millisecond)
	return e
}

func (j *Judge) unseen(v engine.View) []engine.Card {
	used := map[engine.Card]int{v.DealerUp: 1}
	for _, c := range v.Hand {
		used[c]++
	}
	out := make([]engine.Card, 0, 52*j.Decks)
	for d := 0; d < j.Decks; d++ {
		for _, c := range engine.NewDeck() {
			if used[c] > 0 {
				used[c]--
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// draw picks without replacement from the first n cards of pool.
type drawer struct {
	pool []engine.Card
	n    int
	rng  *rand.Rand
}

func (d *drawer) next() engine.Card {
	i := d.rng.Intn(d.n)
	c := d.pool[i]
	d.n--
	d.pool[i], d.pool[d.n] = d.pool[d.n], d.pool[i]
	return c
}

func (j *Judge) playOut(v engine.View, a engine.ActionKind, unseen []engine.Card) float64 {
	d := &drawer{pool: unseen, n: len(unseen), rng: j.rng}
	hand := append([]engine.Card(nil), v.Hand...)
	stake := 1.0

	switch a {
	case engine.DoubleDown:
		stake = 2
		hand = append(hand, d.next())
	case engine.Hit:
		hand = append(hand, d.next())
		for {
			sc := engine.Evaluate(hand)
			if sc.Bust {
				break
			}
			next, _ := agent.Recommend(engine.View{Hand: hand, Score: sc, DealerUp: v.DealerUp})
			if next != engine.Hit {
				break
			}
			hand = append(hand, d.next())
		}
	}
	me := engine.Evaluate(hand)
	if me.Bust {
		return -stake
	}

	hole := d.next()
	if j.Peek {
		for engine.Evaluate([]engine.Card{v.DealerUp, hole}).Blackjack {
			hole = d.next()
		}
	}
	dealer := []engine.Card{v.DealerUp, hole}
	for engine.Evaluate(dealer).Total < 17 {
		dealer = append(dealer, d.next())
	}
	ds := engine.Evaluate(dealer)
	switch {
	case ds.Bust || me.Total > ds.Total:
		return stake
	case me.Total == ds.Total:
		return 0
	default:
		return -stake
	}
}
