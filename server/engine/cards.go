package engine

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	poker "github.com/paulhankin/poker"
)

// NewDeck returns one unshuffled 52-card deck in the library's order:
// clubs, diamonds, hearts, spades, each ace to king.
func NewDeck() []Card {
	deck := make([]Card, 0, len(poker.Cards))
	for _, pc := range poker.Cards {
		c, err := fromPH(pc)
		if err != nil {
			panic(err)
		}
		deck = append(deck, c)
	}
	return deck
}

// String prints rank then lowercase suit, "As" or "Td"; "??" when the card
// is not one of the 52.
func (c Card) String() string {
	pc, err := toPH(c)
	if err != nil {
		return "??"
	}
	return pc.Rank().String() + strings.ToLower(pc.Suit().String())
}

// Valid reports whether c is one of the 52 cards.
func (c Card) Valid() bool {
	_, err := toPH(c)
	return err == nil
}

// Value is the blackjack count of the card with an ace counted high.
func (c Card) Value() int {
	switch {
	case c.Rank == 14:
		return 11
	case c.Rank >= 10:
		return 10
	default:
		return c.Rank
	}
}

func (c Card) IsAce() bool { return c.Rank == 14 }

func (c Card) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Card) UnmarshalText(b []byte) error {
	p, err := ParseCard(string(b))
	if err != nil {
		return err
	}
	*c = p
	return nil
}

// ParseCard reads "As", "Td" or "10d".
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Card{}, fmt.Errorf("bad card %q", s)
	}
	pc, ok := poker.NameToCard[phName(s[:len(s)-1], s[len(s)-1:])]
	if !ok {
		return Card{}, fmt.Errorf("bad card %q", s)
	}
	return fromPH(pc)
}

// MustCards parses a space separated list and panics on error. Test helper.
func MustCards(s string) []Card {
	var out []Card
	for _, f := range strings.Fields(s) {
		c, err := ParseCard(f)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}

// Shoe is an ordered run of cards drawn from the front. Drawn cards stay out
// until Reshuffle.
type Shoe struct {
	cards []Card
	next  int
	decks int
	rng   *rand.Rand
}

// NewShoe builds and shuffles decks standard decks. A zero seed picks one
// from the clock.
func NewShoe(decks int, seed int64) (*Shoe, error) {
	if decks < 1 {
		return nil, fmt.Errorf("shoe needs at least one deck, got %d", decks)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Shoe{decks: decks, rng: rand.New(rand.NewSource(seed))}
	for i := 0; i < decks; i++ {
		s.cards = append(s.cards, NewDeck()...)
	}
	if err := verifyComposition(s.cards, decks); err != nil {
		return nil, err
	}
	s.shuffle()
	return s, nil
}

// NewStackedShoe keeps cards in the given order. Reshuffle only rewinds it.
func NewStackedShoe(cards []Card) *Shoe {
	return &Shoe{cards: append([]Card(nil), cards...)}
}

func (s *Shoe) shuffle() {
	for i := len(s.cards) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		s.cards[i], s.cards[j] = s.cards[j], s.cards[i]
	}
}

func (s *Shoe) Draw() (Card, error) {
	if s.next >= len(s.cards) {
		return Card{}, ErrShoeExhausted
	}
	c := s.cards[s.next]
	s.next++
	return c, nil
}

func (s *Shoe) Remaining() int { return len(s.cards) - s.next }
func (s *Shoe) Size() int      { return len(s.cards) }
func (s *Shoe) Decks() int     { return s.decks }

// Reshuffle returns every drawn card and shuffles the whole shoe again.
func (s *Shoe) Reshuffle() {
	s.next = 0
	if s.rng != nil {
		s.shuffle()
	}
}
