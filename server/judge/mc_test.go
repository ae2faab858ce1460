package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjack-mcp/server/engine"
)

func view(hand, up string, legal ...engine.ActionKind) engine.View {
	cards := engine.MustCards(hand)
	return engine.View{
		Hand:     cards,
		Score:    engine.Evaluate(cards),
		DealerUp: engine.MustCards(up)[0],
		Legal:    legal,
	}
}

func TestStandOnTwentyBeatsHitting(t *testing.T) {
	j := New(3000, 6, true, 7)
	e := j.Evaluate(view("Kh Qd", "6c", engine.Hit, engine.Stand), engine.Hit)
	assert.Equal(t, engine.Stand, e.Best)
	assert.False(t, e.IsTop)
	assert.Greater(t, e.Gap, 0.5)
	assert.Greater(t, e.EVs[engine.Stand], 0.3)
}

func TestHitLowTotalAgainstTen(t *testing.T) {
	j := New(3000, 6, true, 11)
	evs := j.EVs(view("2h 3d", "Tc", engine.Hit, engine.Stand))
	assert.Greater(t, evs[engine.Hit], evs[engine.Stand])
}

func TestElevenPrefersDoubleOverStand(t *testing.T) {
	j := New(3000, 6, true, 3)
	e := j.Evaluate(view("6h 5d", "6c", engine.Hit, engine.Stand, engine.DoubleDown), engine.DoubleDown)
	assert.Greater(t, e.EVs[engine.DoubleDown], e.EVs[engine.Stand])
	assert.Greater(t, e.EVs[engine.Hit], e.EVs[engine.Stand])
	assert.NotEqual(t, engine.Stand, e.Best)
}

func TestEvaluateOnlyScoresLegalActions(t *testing.T) {
	j := New(200, 2, false, 5)
	e := j.Evaluate(view("9h 7d 2c", "8c", engine.Hit, engine.Stand), engine.Stand)
	require.Len(t, e.EVs, 2)
	_, ok := e.EVs[engine.DoubleDown]
	assert.False(t, ok)
	assert.Equal(t, 200, e.Samples)
	assert.InDelta(t, e.EVBest-e.EVChosen, e.Gap, 1e-9)
}

func TestChosenBestIsTop(t *testing.T) {
	j := New(500, 6, true, 1)
	v := view("Th 9d", "7c", engine.Hit, engine.Stand)
	e := j.Evaluate(v, engine.Stand)
	assert.Equal(t, engine.Stand, e.Best)
	assert.True(t, e.IsTop)
	assert.Zero(t, e.Gap)
}

func TestUnseenExcludesKnownCards(t *testing.T) {
	j := New(10, 2, true, 1)
	v := view("Ah Kd", "Ah")
	u := j.unseen(v)
	assert.Len(t, u, 104-3)
	n := 0
	for _, c := range u {
		if c == v.DealerUp {
			n++
		}
	}
	assert.Zero(t, n)
}
