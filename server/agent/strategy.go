package agent

import (
	"context"
	"fmt"

	"blackjack-mcp/server/engine"
)

const maxAutoBet = 50

// BasicStrategy is a rule-based decider and the fallback for every other one.
type BasicStrategy struct{}

func (BasicStrategy) Decide(_ context.Context, v engine.View) (engine.ActionKind, error) {
	a, _ := Recommend(v)
	return a, nil
}

// Recommend returns a legal action for v and a one-line reason.
func Recommend(v engine.View) (engine.ActionKind, string) {
	total := v.Score.Total
	up := v.DealerUp.Value()
	canDouble := v.CanDouble()

	if v.Score.Soft && total < 21 {
		switch {
		case total >= 19:
			return engine.Stand, fmt.Sprintf("soft %d is strong, stand", total)
		case total == 18 && up <= 8:
			return engine.Stand, fmt.Sprintf("soft 18 against a %d, stand", up)
		case total == 18:
			return engine.Hit, fmt.Sprintf("soft 18 against a %d, hit since the ace cannot bust", up)
		default:
			return engine.Hit, fmt.Sprintf("soft %d cannot bust on one card, hit", total)
		}
	}

	switch {
	case total >= 17:
		return engine.Stand, fmt.Sprintf("%d or more, stand", total)
	case total == 11:
		if canDouble {
			return engine.DoubleDown, "11 is the best double"
		}
		return engine.Hit, "11 cannot bust, hit"
	case total == 10:
		if canDouble && up <= 9 {
			return engine.DoubleDown, fmt.Sprintf("10 against a %d, double", up)
		}
		return engine.Hit, "10 cannot bust, hit"
	case total == 9 && canDouble && up >= 3 && up <= 6:
		return engine.DoubleDown, fmt.Sprintf("9 against a weak %d, double", up)
	}

	if up <= 6 {
		switch {
		case total >= 13:
			return engine.Stand, fmt.Sprintf("%d against a weak %d, let the dealer bust", total, up)
		case total == 12 && up >= 4:
			return engine.Stand, fmt.Sprintf("12 against a %d, stand", up)
		}
		return engine.Hit, fmt.Sprintf("%d against a %d, hit", total, up)
	}
	return engine.Hit, fmt.Sprintf("%d against a strong %d, hit", total, up)
}

// DecideBet is the automated seats' bet: a tenth of the stack, between
// minBet and 50, never more than the stack.
func DecideBet(chips, minBet int) int {
	bet := max(minBet, min(chips/10, maxAutoBet))
	return min(bet, chips)
}
