package session

import (
	"math"

	"blackjack-mcp/server/engine"
)

const (
	startElo = 1500.0
	baseK    = 24.0
	// the house is a fixed anchor and never moves
	houseElo = 1500.0
)

// Rating is a seat's Elo against the house, updated once per settled hand.
type Rating struct {
	Elo   float64 `json:"elo"`
	Hands int     `json:"hands"`
}

func newRating() Rating { return Rating{Elo: startElo} }

func (r Rating) expect() float64 {
	return 1.0 / (1.0 + math.Pow(10, (houseElo-r.Elo)/400.0))
}

func outcomeScore(o engine.Outcome) float64 {
	switch o {
	case engine.OutcomeWin, engine.OutcomeBlackjack:
		return 1
	case engine.OutcomePush:
		return 0.5
	default:
		return 0
	}
}

// Update applies one hand and returns the applied delta. Bigger bets
// relative to the minimum move the rating further.
func (r *Rating) Update(o engine.Outcome, bet, minBet int) float64 {
	k := baseK * betScale(bet, minBet) * decay(r.Hands)
	d := k * (outcomeScore(o) - r.expect())
	r.Elo += d
	r.Hands++
	return d
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func betScale(bet, minBet int) float64 {
	if minBet <= 0 || bet <= 0 {
		return 1.0
	}
	scale := float64(bet) / (5.0 * float64(minBet)) // ~5 units baseline
	return clamp(scale, 0.5, 2.0)
}

func decay(hands int) float64 {
	return 1.0 / (1.0 + 0.01*float64(hands)) // slow anneal over hands
}
