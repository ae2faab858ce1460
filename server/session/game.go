package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"blackjack-mcp/server/agent"
	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/judge"
	"blackjack-mcp/server/store"
)

// Game is one table plus what it needs around it. Every operation holds
// the game's lock for its whole duration, including an automated seat's
// decision, so a table only ever sees one caller at a time.
type Game struct {
	ID      string
	Created time.Time

	reg *Registry
	log *zap.Logger

	mu       sync.Mutex
	table    *engine.Table
	deciders map[string]engine.Decider
	sources  map[string]string
	recorded int

	version uint64
	subs    map[int]chan State
	nextSub int
}

// State is a snapshot stamped with the game id and a version that grows
// with every change.
type State struct {
	GameID  string `json:"game_id"`
	Version uint64 `json:"version"`
	engine.Snapshot
}

func newGame(r *Registry, id string, t *engine.Table) *Game {
	return &Game{
		ID:       id,
		Created:  time.Now().UTC(),
		reg:      r,
		log:      r.log.With(zap.String("game", id)),
		table:    t,
		deciders: map[string]engine.Decider{},
		sources:  map[string]string{},
		subs:     map[int]chan State{},
	}
}

func (g *Game) state() State {
	return State{GameID: g.ID, Version: g.version, Snapshot: g.table.Snapshot()}
}

func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state()
}

func (g *Game) Summary() Summary {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Summary{
		ID:      g.ID,
		Phase:   g.table.Phase(),
		Round:   g.table.Round(),
		Seats:   len(g.table.Snapshot().Seats),
		Created: g.Created,
	}
}

func (g *Game) Rules() engine.Config { return g.table.Config() }

// ---- lobby ----

// AddPlayer seats a human. chips <= 0 means a returning player's stored
// bankroll, or the starting stack for a newcomer.
func (g *Game) AddPlayer(ctx context.Context, name string, chips int) (engine.SeatView, error) {
	return g.join(ctx, name, chips, false, "")
}

// AddAIPlayer seats an automated player driven by the registry's decider
// factory.
func (g *Game) AddAIPlayer(ctx context.Context, name string, chips int, model string) (engine.SeatView, error) {
	return g.join(ctx, name, chips, true, model)
}

func (g *Game) join(ctx context.Context, name string, chips int, automated bool, model string) (engine.SeatView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if chips <= 0 {
		if rec, ok := g.reg.players.lookup(ctx, name); ok && rec.Chips >= g.table.Config().MinBet {
			chips = rec.Chips
		}
	}
	id, err := g.table.Join(name, chips, automated)
	if err != nil {
		return engine.SeatView{}, err
	}
	seat, _ := g.table.Seat(id)
	if automated {
		d, source := g.reg.opts.NewDecider(seat.Name, model)
		g.deciders[id] = agent.WithTimeout(d, g.reg.opts.DecisionTimeout, g.log)
		g.sources[id] = source
	}
	g.reg.players.update(ctx, seat.Name, func(r *Record) {
		r.Name = seat.Name
		r.Automated = automated
		r.Chips = seat.Chips
	})
	g.log.Info("seat joined",
		zap.String("seat", id),
		zap.String("name", seat.Name),
		zap.Int("chips", seat.Chips),
		zap.Bool("automated", automated))
	g.after(ctx)
	return seat, nil
}

// RemovePlayer takes a seat off the table, keeping its bankroll.
func (g *Game) RemovePlayer(ctx context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	seat, err := g.table.Seat(ref)
	if err != nil {
		return err
	}
	if err := g.table.Leave(ref); err != nil {
		return err
	}
	// Leave refunds an open bet.
	chips := seat.Chips + seat.Bet
	g.reg.players.update(ctx, seat.Name, func(r *Record) { r.Chips = chips })
	delete(g.deciders, seat.ID)
	delete(g.sources, seat.ID)
	g.after(ctx)
	return nil
}

func (g *Game) Start(ctx context.Context) error {
	return g.mutate(ctx, g.table.Start)
}

// ---- betting ----

func (g *Game) PlaceBet(ctx context.Context, ref string, amount int) error {
	return g.mutate(ctx, func() error { return g.table.PlaceBet(ref, amount) })
}

func (g *Game) SitOut(ctx context.Context, ref string) error {
	return g.mutate(ctx, func() error { return g.table.SitOut(ref) })
}

// ---- player turns ----

func (g *Game) Hit(ctx context.Context, ref string) error   { return g.Act(ctx, ref, engine.Hit) }
func (g *Game) Stand(ctx context.Context, ref string) error { return g.Act(ctx, ref, engine.Stand) }
func (g *Game) DoubleDown(ctx context.Context, ref string) error {
	return g.Act(ctx, ref, engine.DoubleDown)
}

func (g *Game) Act(ctx context.Context, ref string, kind engine.ActionKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, err := g.table.View(ref)
	if err != nil {
		return err
	}
	if err := g.table.Act(ref, kind); err != nil {
		return err
	}
	g.record(ctx, engine.Decision{View: v, Action: kind}, false)
	g.after(ctx)
	return nil
}

// AIPlayTurn lets the automated seat on turn play its whole hand.
func (g *Game) AIPlayTurn(ctx context.Context) ([]engine.Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cur, ok := g.table.CurrentSeat()
	if !ok {
		return nil, fmt.Errorf("%w: no seat on turn", engine.ErrInvalidAction)
	}
	d, ok := g.deciders[cur.ID]
	if !ok {
		d = agent.WithTimeout(agent.BasicStrategy{}, g.reg.opts.DecisionTimeout, g.log)
	}
	decisions, err := g.table.PlayAutomatedTurn(ctx, d)
	for _, dec := range decisions {
		g.record(ctx, dec, true)
	}
	if len(decisions) > 0 {
		g.after(ctx)
	}
	return decisions, err
}

// Advice is the recommendation for the seat on turn.
type Advice struct {
	SeatID      string                        `json:"seat_id"`
	Hand        []engine.Card                 `json:"hand"`
	Score       engine.Score                  `json:"score"`
	DealerUp    engine.Card                   `json:"dealer_up"`
	Legal       []engine.ActionKind           `json:"legal_actions"`
	Recommended engine.ActionKind             `json:"recommended"`
	Reason      string                        `json:"reason"`
	EVs         map[engine.ActionKind]float64 `json:"evs,omitempty"`
}

func (g *Game) Advice(ref string) (Advice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, err := g.table.View(ref)
	if err != nil {
		return Advice{}, err
	}
	if len(v.Legal) == 0 {
		return Advice{}, fmt.Errorf("%w: not %s's turn", engine.ErrInvalidAction, v.Name)
	}
	a, why := agent.Recommend(v)
	adv := Advice{
		SeatID:      v.SeatID,
		Hand:        v.Hand,
		Score:       v.Score,
		DealerUp:    v.DealerUp,
		Legal:       v.Legal,
		Recommended: a,
		Reason:      why,
	}
	if j := g.reg.opts.Judge; j != nil {
		adv.EVs = j.EVs(v)
	}
	return adv, nil
}

// ---- round end ----

func (g *Game) NewRound(ctx context.Context) error {
	return g.mutate(ctx, g.table.NewRound)
}

// Standing is a final position with the player's career alongside.
type Standing struct {
	engine.Standing
	Elo   float64    `json:"elo"`
	Stats SeatStats  `json:"stats"`
	WinCI [2]float64 `json:"win_rate_ci95"`
}

func (g *Game) End(ctx context.Context) ([]Standing, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	final, err := g.table.End()
	if err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(final))
	for _, s := range final {
		chips := s.Chips
		rec := g.reg.players.update(ctx, s.Name, func(r *Record) { r.Chips = chips })
		lo, hi := WilsonCI95(rec.Stats.Wins, rec.Stats.Pushes, rec.Stats.Hands)
		out = append(out, Standing{Standing: s, Elo: rec.Rating.Elo, Stats: rec.Stats, WinCI: [2]float64{lo, hi}})
	}
	if db := g.reg.opts.Store; db != nil {
		if err := db.EndGame(ctx, g.ID); err != nil {
			g.log.Warn("store end game", zap.Error(err))
		}
	}
	g.log.Info("game ended", zap.Int("rounds", g.table.Round()), zap.Int("house_net", g.table.HouseNet()))
	g.publish()
	return out, nil
}

// ---- internals ----

func (g *Game) mutate(ctx context.Context, fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	g.after(ctx)
	return nil
}

// after runs once a mutation succeeded: automated seats bet, a freshly
// settled round goes to the ledger, subscribers get the new state.
func (g *Game) after(ctx context.Context) {
	g.autoBet()
	g.recordRound(ctx)
	g.publish()
}

func (g *Game) autoBet() {
	cfg := g.table.Config()
	for _, s := range g.table.Snapshot().Seats {
		if g.table.Phase() != engine.PhaseBetting {
			return
		}
		if !s.Automated || s.SatOut || s.Bet > 0 {
			continue
		}
		bet := agent.DecideBet(s.Chips, cfg.MinBet)
		if cfg.MaxBet > 0 {
			bet = min(bet, cfg.MaxBet)
		}
		if err := g.table.PlaceBet(s.ID, bet); err != nil {
			g.log.Warn("auto bet", zap.String("seat", s.ID), zap.Int("bet", bet), zap.Error(err))
			if err := g.table.SitOut(s.ID); err != nil {
				g.log.Warn("auto sit out", zap.String("seat", s.ID), zap.Error(err))
			}
		}
	}
}

func (g *Game) recordRound(ctx context.Context) {
	last := g.table.LastRound()
	if last == nil || last.Round <= g.recorded {
		return
	}
	g.recorded = last.Round
	if len(last.Seats) == 0 {
		return
	}
	minBet := g.table.Config().MinBet
	for _, sr := range last.Seats {
		g.reg.players.update(ctx, sr.Name, func(r *Record) {
			r.Chips = sr.ChipsAfter
			r.Stats.addResult(sr)
			r.Rating.Update(sr.Outcome, sr.Bet, minBet)
		})
	}
	g.log.Info("round settled",
		zap.Int("round", last.Round),
		zap.String("dealer", engine.CardsString(last.Dealer)),
		zap.Int("dealer_score", last.DealerScore),
		zap.Int("house_delta", last.HouseDelta))

	db := g.reg.opts.Store
	if db == nil {
		return
	}
	row := store.Round{
		GameID:          g.ID,
		Round:           last.Round,
		DealerCards:     engine.CardsString(last.Dealer),
		DealerScore:     last.DealerScore,
		DealerBust:      last.DealerBust,
		DealerBlackjack: last.DealerBlackjack,
		HouseDelta:      last.HouseDelta,
	}
	for _, sr := range last.Seats {
		row.Seats = append(row.Seats, store.SeatResult{
			SeatID:     sr.SeatID,
			Name:       sr.Name,
			Bet:        sr.Bet,
			Cards:      engine.CardsString(sr.Hand),
			Score:      sr.Score,
			Outcome:    string(sr.Outcome),
			Delta:      sr.Delta,
			ChipsAfter: sr.ChipsAfter,
		})
	}
	if err := db.InsertRound(ctx, row); err != nil {
		g.log.Warn("store round", zap.Int("round", last.Round), zap.Error(err))
	}
}

// record grades a decision and writes it to the ledger.
func (g *Game) record(ctx context.Context, dec engine.Decision, automated bool) {
	v := dec.View
	row := store.Decision{
		GameID:    g.ID,
		Round:     v.Round,
		SeatID:    v.SeatID,
		Name:      v.Name,
		Hand:      engine.CardsString(v.Hand),
		DealerUp:  v.DealerUp.String(),
		Score:     v.Score.Total,
		Action:    string(dec.Action),
		Automated: automated,
	}
	if j := g.reg.opts.Judge; j != nil && len(v.Legal) > 0 {
		ev := j.Evaluate(v, dec.Action)
		solver, best := judge.Solver, string(ev.Best)
		row.Solver, row.Best = &solver, &best
		row.EVChosen, row.EVBest, row.EVGap = &ev.EVChosen, &ev.EVBest, &ev.Gap
		row.IsTop, row.ComputeMS = &ev.IsTop, &ev.ComputeMS
		if b, err := json.Marshal(ev.EVs); err == nil {
			s := string(b)
			row.EVsJSON = &s
		}
		g.reg.players.update(ctx, v.Name, func(r *Record) { r.Stats.addJudgement(ev.IsTop) })
		g.log.Debug("decision graded",
			zap.String("seat", v.SeatID),
			zap.String("action", row.Action),
			zap.String("best", best),
			zap.Float64("gap", ev.Gap))
	}
	if db := g.reg.opts.Store; db != nil {
		if err := db.InsertDecision(ctx, row); err != nil {
			g.log.Warn("store decision", zap.Error(err))
		}
	}
}

// Source names the decision source behind an automated seat.
func (g *Game) Source(seatID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sources[seatID]
}
