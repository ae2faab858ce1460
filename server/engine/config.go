package engine

import (
	"fmt"
	"strconv"
	"strings"
)

type Rounding string

const (
	RoundFloor   Rounding = "floor"
	RoundCeil    Rounding = "ceil"
	RoundNearest Rounding = "nearest"
)

const MaxSeats = 6

type Config struct {
	Decks         int
	StartingChips int
	MinBet        int
	MaxBet        int // 0 means the seat's chips
	MaxSeats      int
	ReshufflePct  int
	PayoutNum     int
	PayoutDen     int
	Rounding      Rounding
	DealerPeek    bool
	Seed          int64
}

func DefaultConfig() Config {
	return Config{
		Decks:         6,
		StartingChips: 100,
		MinBet:        1,
		MaxSeats:      MaxSeats,
		ReshufflePct:  20,
		PayoutNum:     3,
		PayoutDen:     2,
		Rounding:      RoundFloor,
		DealerPeek:    true,
	}
}

func (c Config) Validate() error {
	switch {
	case c.StartingChips <= 0:
		return fmt.Errorf("starting chips must be positive, got %d", c.StartingChips)
	case c.MinBet <= 0:
		return fmt.Errorf("minimum bet must be positive, got %d", c.MinBet)
	case c.MaxBet < 0 || (c.MaxBet > 0 && c.MaxBet < c.MinBet):
		return fmt.Errorf("maximum bet %d below minimum %d", c.MaxBet, c.MinBet)
	case c.MaxSeats < 1 || c.MaxSeats > MaxSeats:
		return fmt.Errorf("seats must be 1..%d, got %d", MaxSeats, c.MaxSeats)
	case c.ReshufflePct < 0 || c.ReshufflePct > 100:
		return fmt.Errorf("reshuffle percentage must be 0..100, got %d", c.ReshufflePct)
	case c.PayoutNum <= 0 || c.PayoutDen <= 0:
		return fmt.Errorf("bad blackjack payout %d:%d", c.PayoutNum, c.PayoutDen)
	}
	switch c.Rounding {
	case RoundFloor, RoundCeil, RoundNearest:
	default:
		return fmt.Errorf("unknown rounding %q", c.Rounding)
	}
	return nil
}

// ParsePayout reads a ratio such as "3:2" or "6/5".
func ParsePayout(s string) (num, den int, err error) {
	f := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == '/' })
	if len(f) != 2 {
		return 0, 0, fmt.Errorf("bad payout %q", s)
	}
	if num, err = strconv.Atoi(strings.TrimSpace(f[0])); err != nil {
		return 0, 0, fmt.Errorf("bad payout %q: %w", s, err)
	}
	if den, err = strconv.Atoi(strings.TrimSpace(f[1])); err != nil {
		return 0, 0, fmt.Errorf("bad payout %q: %w", s, err)
	}
	if num <= 0 || den <= 0 {
		return 0, 0, fmt.Errorf("bad payout %q", s)
	}
	return num, den, nil
}

// BlackjackWin is the profit on a natural for bet, rounded per c.Rounding.
func (c Config) BlackjackWin(bet int) int {
	n, d := bet*c.PayoutNum, c.PayoutDen
	switch c.Rounding {
	case RoundCeil:
		return (n + d - 1) / d
	case RoundNearest:
		return (2*n + d) / (2 * d)
	default:
		return n / d
	}
}

func (c Config) PayoutString() string {
	return strconv.Itoa(c.PayoutNum) + ":" + strconv.Itoa(c.PayoutDen)
}

// Describe renders the table rules as plain text.
func (c Config) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Blackjack, %d decks, up to %d seats.\n", c.Decks, c.MaxSeats)
	fmt.Fprintf(&b, "Starting chips %d. Minimum bet %d", c.StartingChips, c.MinBet)
	if c.MaxBet > 0 {
		fmt.Fprintf(&b, ", maximum bet %d", c.MaxBet)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Blackjack pays %s (%s rounding). Wins pay 1:1, pushes return the bet.\n", c.PayoutString(), c.Rounding)
	b.WriteString("Dealer hits on 16 or less and stands on all 17s.\n")
	if c.DealerPeek {
		b.WriteString("Dealer peeks for blackjack after the deal; a dealer blackjack ends the round at once.\n")
	}
	b.WriteString("Double down on your first decision only: the bet doubles and you take exactly one card.\n")
	fmt.Fprintf(&b, "The shoe is reshuffled before a deal once fewer than %d%% of its cards remain.", c.ReshufflePct)
	return b.String()
}
