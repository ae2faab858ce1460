// Package session runs many independent tables behind one registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"blackjack-mcp/server/agent"
	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/judge"
	"blackjack-mcp/server/store"
)

var ErrGameNotFound = errors.New("game not found")

// DeciderFactory builds the decision source for a new automated seat.
// model may be empty.
type DeciderFactory func(name, model string) (engine.Decider, string)

type Options struct {
	Rules           engine.Config
	Store           store.Store // nil: nothing persisted
	Judge           *judge.Judge
	NewDecider      DeciderFactory
	DecisionTimeout time.Duration
	Log             *zap.Logger
}

type Registry struct {
	opts    Options
	log     *zap.Logger
	players *players

	mu    sync.RWMutex
	games map[string]*Game
	order []string
}

func NewRegistry(opts Options) *Registry {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.DecisionTimeout <= 0 {
		opts.DecisionTimeout = 20 * time.Second
	}
	if opts.NewDecider == nil {
		opts.NewDecider = func(string, string) (engine.Decider, string) { return agent.BasicStrategy{}, "basic" }
	}
	return &Registry{
		opts:    opts,
		log:     opts.Log,
		players: newPlayers(opts.Store, opts.Log),
		games:   map[string]*Game{},
	}
}

func (r *Registry) Rules() engine.Config { return r.opts.Rules }

// Create opens a new table in the lobby.
func (r *Registry) Create(ctx context.Context) (*Game, error) {
	return r.CreateWithShoe(ctx, nil)
}

// CreateWithShoe opens a table over a given shoe; nil shuffles a new one.
func (r *Registry) CreateWithShoe(ctx context.Context, shoe *engine.Shoe) (*Game, error) {
	var (
		t   *engine.Table
		err error
	)
	if shoe != nil {
		t, err = engine.NewTableWithShoe(r.opts.Rules, shoe)
	} else {
		t, err = engine.NewTable(r.opts.Rules)
	}
	if err != nil {
		return nil, err
	}
	g := newGame(r, uuid.NewString(), t)

	r.mu.Lock()
	r.games[g.ID] = g
	r.order = append(r.order, g.ID)
	r.mu.Unlock()

	if r.opts.Store != nil {
		if err := r.opts.Store.CreateGame(ctx, g.ID, r.opts.Rules.Describe()); err != nil {
			r.log.Warn("store game", zap.String("game", g.ID), zap.Error(err))
		}
	}
	r.log.Info("game created", zap.String("game", g.ID))
	return g, nil
}

// Get finds a game by id. An empty id means the most recently created game.
func (r *Registry) Get(id string) (*Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == "" {
		if len(r.order) == 0 {
			return nil, fmt.Errorf("%w: no games yet, create one first", ErrGameNotFound)
		}
		id = r.order[len(r.order)-1]
	}
	g, ok := r.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return g, nil
}

// Remove drops a game from the registry and closes its subscribers.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	g, ok := r.games[id]
	if ok {
		delete(r.games, id)
		for i, gid := range r.order {
			if gid == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	g.closeSubscribers()
	return nil
}

type Summary struct {
	ID      string       `json:"game_id"`
	Phase   engine.Phase `json:"phase"`
	Round   int          `json:"round_number"`
	Seats   int          `json:"seats"`
	Created time.Time    `json:"created_at"`
}

// List summarises every game, oldest first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	games := make([]*Game, 0, len(r.order))
	for _, id := range r.order {
		games = append(games, r.games[id])
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(games))
	for _, g := range games {
		out = append(out, g.Summary())
	}
	return out
}

// LeaderRow is one line of the leaderboard.
type LeaderRow struct {
	Record
	WinRate     float64    `json:"win_rate"`
	WinCI       [2]float64 `json:"win_rate_ci95"`
	UnitsPer100 float64    `json:"units_per_100"`
	Accuracy    float64    `json:"judge_accuracy"`
}

func leaderRow(rec Record, unit int) LeaderRow {
	lo, hi := WilsonCI95(rec.Stats.Wins, rec.Stats.Pushes, rec.Stats.Hands)
	return LeaderRow{
		Record:      rec,
		WinRate:     rec.Stats.WinRate(),
		WinCI:       [2]float64{lo, hi},
		UnitsPer100: rec.Stats.UnitsPer100(unit),
		Accuracy:    rec.Stats.JudgeAccuracy(),
	}
}

// Leaderboard ranks players by rating. With a store it covers every player
// ever seen, otherwise those seen by this process.
func (r *Registry) Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []Record
	if r.opts.Store != nil {
		ps, err := r.opts.Store.Leaderboard(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			recs = append(recs, fromStore(p))
		}
	} else {
		recs = r.players.all()
		sort.Slice(recs, func(i, j int) bool {
			if recs[i].Rating.Elo != recs[j].Rating.Elo {
				return recs[i].Rating.Elo > recs[j].Rating.Elo
			}
			return recs[i].Stats.NetChips > recs[j].Stats.NetChips
		})
		if len(recs) > limit {
			recs = recs[:limit]
		}
	}
	out := make([]LeaderRow, 0, len(recs))
	for _, rec := range recs {
		out = append(out, leaderRow(rec, r.opts.Rules.MinBet))
	}
	return out, nil
}

// Decisions returns the graded decision log of a game from the store.
func (r *Registry) Decisions(ctx context.Context, id string) ([]store.Decision, error) {
	if r.opts.Store == nil {
		return nil, store.ErrNoDSN
	}
	return r.opts.Store.Decisions(ctx, id)
}
