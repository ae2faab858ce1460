package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"blackjack-mcp/server/store"
)

// Record is a player's bankroll and career, shared by every game the
// registry runs and mirrored to the store when one is configured.
type Record struct {
	Name      string    `json:"name"`
	Automated bool      `json:"automated"`
	Chips     int       `json:"chips"`
	Rating    Rating    `json:"rating"`
	Stats     SeatStats `json:"stats"`
}

func (r Record) toStore() store.Player {
	return store.Player{
		Name:       r.Name,
		Automated:  r.Automated,
		Chips:      r.Chips,
		Elo:        r.Rating.Elo,
		Hands:      r.Stats.Hands,
		Wins:       r.Stats.Wins,
		Losses:     r.Stats.Losses,
		Pushes:     r.Stats.Pushes,
		Blackjacks: r.Stats.Blackjacks,
		Busts:      r.Stats.Busts,
		Doubles:    r.Stats.Doubles,
		Net:        r.Stats.NetChips,
		JudgeGood:  r.Stats.JudgeGood,
		JudgeTotal: r.Stats.JudgeTotal,
	}
}

func fromStore(p store.Player) Record {
	return Record{
		Name:      p.Name,
		Automated: p.Automated,
		Chips:     p.Chips,
		Rating:    Rating{Elo: p.Elo, Hands: p.Hands},
		Stats: SeatStats{
			Hands:      p.Hands,
			Wins:       p.Wins,
			Losses:     p.Losses,
			Pushes:     p.Pushes,
			Blackjacks: p.Blackjacks,
			Busts:      p.Busts,
			Doubles:    p.Doubles,
			NetChips:   p.Net,
			JudgeGood:  p.JudgeGood,
			JudgeTotal: p.JudgeTotal,
		},
	}
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// players caches records by case-insensitive name.
type players struct {
	mu   sync.Mutex
	byID map[string]*Record
	db   store.Store
	log  *zap.Logger
}

func newPlayers(db store.Store, log *zap.Logger) *players {
	return &players{byID: map[string]*Record{}, db: db, log: log}
}

// lookup returns the known record for name, loading it from the store the
// first time. ok is false for a player never seen before.
func (p *players) lookup(ctx context.Context, name string) (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.byID[key(name)]; ok {
		return *r, true
	}
	if p.db == nil {
		return Record{}, false
	}
	sp, err := p.db.LoadPlayer(ctx, name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.log.Warn("load player", zap.String("name", name), zap.Error(err))
		}
		return Record{}, false
	}
	r := fromStore(sp)
	p.byID[key(name)] = &r
	return r, true
}

// update mutates the record for name (creating it) and persists it.
func (p *players) update(ctx context.Context, name string, fn func(r *Record)) Record {
	p.mu.Lock()
	r, ok := p.byID[key(name)]
	if !ok {
		r = &Record{Name: name, Rating: newRating()}
		p.byID[key(name)] = r
	}
	fn(r)
	out := *r
	p.mu.Unlock()

	if p.db != nil {
		if err := p.db.SavePlayer(ctx, out.toStore()); err != nil {
			p.log.Warn("save player", zap.String("name", name), zap.Error(err))
		}
	}
	return out
}

func (p *players) all() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Record, 0, len(p.byID))
	for _, r := range p.byID {
		out = append(out, *r)
	}
	return out
}
