package engine

import (
	"fmt"
	"strings"

	poker "github.com/paulhankin/poker"
)

// Card identity lives in the library: our ranks are 2..14 (Ace=14), the
// library's 1..13 (Ace=1); suits map c/d/h/s onto Club..Spade.
var (
	suitToPH = map[byte]poker.Suit{'c': poker.Club, 'd': poker.Diamond, 'h': poker.Heart, 's': poker.Spade}
	suitFrom = map[poker.Suit]byte{poker.Club: 'c', poker.Diamond: 'd', poker.Heart: 'h', poker.Spade: 's'}
)

// Convert our engine.Card -> library card.
func toPH(c Card) (poker.Card, error) {
	s, ok := suitToPH[c.Suit]
	if !ok {
		var zero poker.Card
		return zero, fmt.Errorf("card %d%c: unknown suit %q", c.Rank, c.Suit, c.Suit)
	}
	r := poker.Rank(c.Rank)
	if c.Rank == 14 {
		r = poker.Rank(1)
	} else if c.Rank < 2 {
		// MakeCard would read 1 as an ace
		r = 0
	}
	return poker.MakeCard(s, r)
}

// fromPH converts a library card back.
func fromPH(pc poker.Card) (Card, error) {
	if !pc.Valid() {
		return Card{}, fmt.Errorf("invalid card %v", pc)
	}
	rank := int(pc.Rank())
	if rank == 1 {
		rank = 14
	}
	return Card{Rank: rank, Suit: suitFrom[pc.Suit()]}, nil
}

// phName renders a card the library's way ("SA", "DT").
func phName(rank, suit string) string {
	if rank == "10" {
		rank = "T"
	}
	return strings.ToUpper(suit) + strings.ToUpper(rank)
}

// verifyComposition checks that cards hold every one of the 52 identities
// exactly decks times.
func verifyComposition(cards []Card, decks int) error {
	if len(cards) != 52*decks {
		return fmt.Errorf("shoe has %d cards, want %d", len(cards), 52*decks)
	}
	seen := make(map[poker.Card]int, 52)
	for _, c := range cards {
		pc, err := toPH(c)
		if err != nil {
			return err
		}
		seen[pc]++
	}
	if len(seen) != 52 {
		return fmt.Errorf("shoe has %d distinct cards, want 52", len(seen))
	}
	for pc, n := range seen {
		if n != decks {
			return fmt.Errorf("card %v appears %d times, want %d", pc, n, decks)
		}
	}
	return nil
}
