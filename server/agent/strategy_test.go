package agent

import (
	"context"
	"testing"

	"blackjack-mcp/server/engine"
	"github.com/stretchr/testify/assert"
)

func view(hand, up string, canDouble bool) engine.View {
	cards := engine.MustCards(hand)
	legal := []engine.ActionKind{engine.Hit, engine.Stand}
	if canDouble {
		legal = append(legal, engine.DoubleDown)
	}
	return engine.View{
		Name:     "bot",
		Hand:     cards,
		Score:    engine.Evaluate(cards),
		DealerUp: engine.MustCards(up)[0],
		Legal:    legal,
		Chips:    90,
		Bet:      10,
	}
}

func TestRecommend(t *testing.T) {
	cases := []struct {
		name      string
		hand, up  string
		canDouble bool
		want      engine.ActionKind
	}{
		{"hard 17 stands", "Tc 7d", "As", false, engine.Stand},
		{"11 doubles", "6c 5d", "Ts", true, engine.DoubleDown},
		{"11 hits when double is not legal", "6c 5d", "Ts", false, engine.Hit},
		{"10 doubles against 9", "6c 4d", "9s", true, engine.DoubleDown},
		{"10 hits against ten", "6c 4d", "Ks", true, engine.Hit},
		{"9 doubles against 5", "5c 4d", "5s", true, engine.DoubleDown},
		{"9 hits against 2", "5c 4d", "2s", true, engine.Hit},
		{"13 stands against 6", "Tc 3d", "6s", false, engine.Stand},
		{"12 stands against 4", "Tc 2d", "4s", false, engine.Stand},
		{"12 hits against 3", "Tc 2d", "3s", false, engine.Hit},
		{"16 hits against 7", "Tc 6d", "7s", false, engine.Hit},
		{"soft 17 hits", "Ac 6d", "7s", true, engine.Hit},
		{"soft 18 stands against 8", "Ac 7d", "8s", false, engine.Stand},
		{"soft 18 hits against 9", "Ac 7d", "9s", false, engine.Hit},
		{"soft 19 stands", "Ac 8d", "Ts", false, engine.Stand},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := Recommend(view(tc.hand, tc.up, tc.canDouble))
			assert.Equal(t, tc.want, got)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestBasicStrategyAlwaysLegal(t *testing.T) {
	deck := engine.NewDeck()
	for i := 0; i+2 < len(deck); i++ {
		v := view(deck[i].String()+" "+deck[i+1].String(), deck[i+2].String(), false)
		got, err := BasicStrategy{}.Decide(context.Background(), v)
		assert.NoError(t, err)
		assert.Contains(t, v.Legal, got)
	}
}

func TestDecideBet(t *testing.T) {
	assert.Equal(t, 10, DecideBet(100, 1))
	assert.Equal(t, 1, DecideBet(5, 1))
	assert.Equal(t, 50, DecideBet(5000, 1))
	assert.Equal(t, 5, DecideBet(20, 5))
	assert.Equal(t, 3, DecideBet(3, 5))
}
