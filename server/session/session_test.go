package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/judge"
	"blackjack-mcp/server/store"
)

func newRegistry(t *testing.T, mod func(*Options)) *Registry {
	t.Helper()
	opts := Options{Rules: engine.DefaultConfig()}
	if mod != nil {
		mod(&opts)
	}
	return NewRegistry(opts)
}

func stackedGame(t *testing.T, r *Registry, cards string) *Game {
	t.Helper()
	g, err := r.CreateWithShoe(context.Background(), engine.NewStackedShoe(engine.MustCards(cards)))
	require.NoError(t, err)
	return g
}

func openStore(t *testing.T, path string) store.Store {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, "sqlite:"+path)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestRegistryLookup(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, nil)

	_, err := r.Get("")
	assert.ErrorIs(t, err, ErrGameNotFound)

	g1, err := r.Create(ctx)
	require.NoError(t, err)
	g2, err := r.Create(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, g1.ID, g2.ID)

	got, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, g2.ID, got.ID, "empty id means the latest game")

	got, err = r.Get(g1.ID)
	require.NoError(t, err)
	assert.Same(t, g1, got)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, g1.ID, list[0].ID)
	assert.Equal(t, engine.PhaseLobby, list[0].Phase)

	require.NoError(t, r.Remove(g1.ID))
	_, err = r.Get(g1.ID)
	assert.ErrorIs(t, err, ErrGameNotFound)
	assert.ErrorIs(t, r.Remove(g1.ID), ErrGameNotFound)
}

func TestBlackjackRoundUpdatesRecord(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, nil)
	g := stackedGame(t, r, "As Kd 9c 9h")

	seat, err := g.AddPlayer(ctx, "Alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 100, seat.Chips)
	require.NoError(t, g.Start(ctx))
	require.NoError(t, g.PlaceBet(ctx, "alice", 50))

	st := g.State()
	assert.Equal(t, engine.PhaseRoundEnd, st.Phase)
	assert.Equal(t, 1, st.Round)
	require.NotNil(t, st.LastRound)
	require.Len(t, st.LastRound.Seats, 1)
	assert.Equal(t, 75, st.LastRound.Seats[0].Delta)
	assert.Equal(t, 175, st.Seats[0].Chips)

	rec, ok := r.players.lookup(ctx, "ALICE")
	require.True(t, ok)
	assert.Equal(t, 175, rec.Chips)
	assert.Equal(t, 1, rec.Stats.Hands)
	assert.Equal(t, 1, rec.Stats.Blackjacks)
	assert.Greater(t, rec.Rating.Elo, startElo)

	board, err := r.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "Alice", board[0].Name)
	assert.Equal(t, 1.0, board[0].WinRate)
}

func TestAutomatedSeatBetsAndPlays(t *testing.T) {
	ctx := context.Background()
	db := openStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	r := newRegistry(t, func(o *Options) {
		o.Store = db
		o.Judge = judge.New(200, 6, true, 1)
	})
	g := stackedGame(t, r, "Th 7c 9d 8s")

	_, err := g.AddAIPlayer(ctx, "Bot", 0, "")
	require.NoError(t, err)
	require.NoError(t, g.Start(ctx))

	st := g.State()
	require.Equal(t, engine.PhasePlayerTurns, st.Phase, "automated seat bets on its own")
	assert.Equal(t, 10, st.Seats[0].Bet)

	decisions, err := g.AIPlayTurn(ctx)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, engine.Stand, decisions[0].Action)

	st = g.State()
	assert.Equal(t, engine.PhaseRoundEnd, st.Phase)
	assert.Equal(t, engine.OutcomePush, st.LastRound.Seats[0].Outcome)

	logged, err := r.Decisions(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.True(t, logged[0].Automated)
	require.NotNil(t, logged[0].Solver)
	assert.Equal(t, judge.Solver, *logged[0].Solver)

	p, err := db.LoadPlayer(ctx, "bot")
	require.NoError(t, err)
	assert.Equal(t, 100, p.Chips)
	assert.Equal(t, 1, p.Pushes)
	assert.Equal(t, 1, p.JudgeTotal)
	assert.True(t, p.Automated)
}

func TestAIPlayTurnRejectsHumanSeat(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, nil)
	g := stackedGame(t, r, "Th 6c 9d 8s Kh")
	_, err := g.AddPlayer(ctx, "Alice", 0)
	require.NoError(t, err)
	require.NoError(t, g.Start(ctx))
	require.NoError(t, g.PlaceBet(ctx, "Alice", 10))

	_, err = g.AIPlayTurn(ctx)
	assert.ErrorIs(t, err, engine.ErrInvalidAction)
}

func TestSlowDeciderStands(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, func(o *Options) {
		o.DecisionTimeout = 20 * time.Millisecond
		o.NewDecider = func(string, string) (engine.Decider, string) {
			return engine.DeciderFunc(func(ctx context.Context, _ engine.View) (engine.ActionKind, error) {
				<-ctx.Done()
				return engine.Hit, ctx.Err()
			}), "slow"
		}
	})
	g := stackedGame(t, r, "2h 3c 9d 8s")
	seat, err := g.AddAIPlayer(ctx, "Sleepy", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "slow", g.Source(seat.ID))
	require.NoError(t, g.Start(ctx))

	decisions, err := g.AIPlayTurn(ctx)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, engine.Stand, decisions[0].Action)
	assert.Equal(t, engine.PhaseRoundEnd, g.State().Phase)
}

func TestAdvice(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, func(o *Options) { o.Judge = judge.New(300, 6, true, 2) })
	g := stackedGame(t, r, "Th 6c 9d 8s Kh")
	_, err := g.AddPlayer(ctx, "Alice", 0)
	require.NoError(t, err)
	_, err = g.AddPlayer(ctx, "Bob", 0)
	require.NoError(t, err)

	_, err = g.Advice("Alice")
	assert.ErrorIs(t, err, engine.ErrInvalidAction)

	require.NoError(t, g.Start(ctx))
	require.NoError(t, g.PlaceBet(ctx, "Alice", 10))
	require.NoError(t, g.SitOut(ctx, "Bob"))

	adv, err := g.Advice("alice")
	require.NoError(t, err)
	assert.Equal(t, 16, adv.Score.Total)
	assert.Equal(t, engine.Hit, adv.Recommended)
	assert.NotEmpty(t, adv.Reason)
	assert.Len(t, adv.EVs, len(adv.Legal))

	_, err = g.Advice("Bob")
	assert.ErrorIs(t, err, engine.ErrInvalidAction)
}

func TestReturningPlayerKeepsBankroll(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	r1 := newRegistry(t, func(o *Options) { o.Store = openStore(t, path) })
	g := stackedGame(t, r1, "As Kd 9c 9h")
	_, err := g.AddPlayer(ctx, "Alice", 0)
	require.NoError(t, err)
	require.NoError(t, g.Start(ctx))
	require.NoError(t, g.PlaceBet(ctx, "Alice", 50))
	final, err := g.End(ctx)
	require.NoError(t, err)
	require.Len(t, final, 1)
	assert.Equal(t, 175, final[0].Chips)
	assert.Equal(t, 75, final[0].Net)
	assert.Equal(t, 1, final[0].Stats.Wins)

	r2 := newRegistry(t, func(o *Options) { o.Store = openStore(t, path) })
	g2, err := r2.Create(ctx)
	require.NoError(t, err)
	seat, err := g2.AddPlayer(ctx, "ALICE", 0)
	require.NoError(t, err)
	assert.Equal(t, 175, seat.Chips)

	seat, err = g2.AddPlayer(ctx, "Carol", 0)
	require.NoError(t, err)
	assert.Equal(t, 100, seat.Chips)

	board, err := r2.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, board)
	assert.Equal(t, "Alice", board[0].Name)
}

func TestSubscribersSeeVersions(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, nil)
	g, err := r.Create(ctx)
	require.NoError(t, err)

	ch, cancel := g.Subscribe()
	defer cancel()
	first := <-ch
	assert.Equal(t, uint64(0), first.Version)
	assert.Equal(t, g.ID, first.GameID)

	_, err = g.AddPlayer(ctx, "Alice", 0)
	require.NoError(t, err)
	select {
	case st := <-ch:
		assert.Equal(t, uint64(1), st.Version)
		require.Len(t, st.Seats, 1)
	case <-time.After(time.Second):
		t.Fatal("no state after join")
	}

	// failed operations publish nothing
	_, err = g.AddPlayer(ctx, "alice", 0)
	assert.ErrorIs(t, err, engine.ErrDuplicateName)
	select {
	case st := <-ch:
		t.Fatalf("unexpected state %d", st.Version)
	default:
	}
	cancel()
	cancel()
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, nil)
	g, err := r.Create(ctx)
	require.NoError(t, err)
	ch, _ := g.Subscribe()

	for i := 0; i < subscriberBuffer; i++ {
		_, err := g.AddPlayer(ctx, "Alice", 0)
		require.NoError(t, err)
		require.NoError(t, g.RemovePlayer(ctx, "Alice"))
	}
	assert.Zero(t, g.subscriberCount())

	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
}

func TestGameNotFoundWraps(t *testing.T) {
	r := newRegistry(t, nil)
	_, err := r.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGameNotFound))
	assert.Contains(t, err.Error(), "nope")
}
