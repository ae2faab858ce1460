package engine

import (
	"strconv"
	"strings"
)

// Score is derived from a hand's cards on every call.
type Score struct {
	Total     int  `json:"total"`
	Soft      bool `json:"soft"`
	Bust      bool `json:"bust"`
	Blackjack bool `json:"blackjack"`
}

// Evaluate counts aces as 11 and drops them to 1 one at a time while the
// hand is over 21.
func Evaluate(cards []Card) Score {
	total, highAces := 0, 0
	for _, c := range cards {
		total += c.Value()
		if c.IsAce() {
			highAces++
		}
	}
	for total > 21 && highAces > 0 {
		total -= 10
		highAces--
	}
	return Score{
		Total:     total,
		Soft:      highAces > 0,
		Bust:      total > 21,
		Blackjack: len(cards) == 2 && total == 21,
	}
}

func (s Score) String() string {
	switch {
	case s.Blackjack:
		return "blackjack"
	case s.Bust:
		return "bust"
	case s.Soft:
		return "soft " + strconv.Itoa(s.Total)
	}
	return strconv.Itoa(s.Total)
}

func CardsString(cs []Card) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
