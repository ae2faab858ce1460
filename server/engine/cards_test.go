package engine

import (
	"encoding/json"
	"errors"
	"testing"

	poker "github.com/paulhankin/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShoeComposition(t *testing.T) {
	s, err := NewShoe(6, 42)
	require.NoError(t, err)
	assert.Equal(t, 312, s.Size())
	assert.Equal(t, 312, s.Remaining())

	counts := map[Card]int{}
	for s.Remaining() > 0 {
		c, err := s.Draw()
		require.NoError(t, err)
		counts[c]++
	}
	assert.Len(t, counts, 52)
	for c, n := range counts {
		assert.Equal(t, 6, n, c.String())
	}

	_, err = s.Draw()
	assert.True(t, errors.Is(err, ErrShoeExhausted))
}

func TestShoeSeedIsDeterministic(t *testing.T) {
	a, err := NewShoe(2, 7)
	require.NoError(t, err)
	b, err := NewShoe(2, 7)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		ca, _ := a.Draw()
		cb, _ := b.Draw()
		assert.Equal(t, ca, cb)
	}
}

func TestShoeReshuffleRestoresEveryCard(t *testing.T) {
	s, err := NewShoe(2, 3)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		_, err := s.Draw()
		require.NoError(t, err)
	}
	assert.Equal(t, 54, s.Remaining())
	s.Reshuffle()
	assert.Equal(t, 104, s.Remaining())
	require.NoError(t, verifyComposition(s.cards, 2))
}

func TestNewShoeRejectsZeroDecks(t *testing.T) {
	_, err := NewShoe(0, 1)
	assert.Error(t, err)
}

func TestStackedShoeKeepsOrder(t *testing.T) {
	s := NewStackedShoe(MustCards("As Kd 9c"))
	c, _ := s.Draw()
	assert.Equal(t, "As", c.String())
	s.Reshuffle()
	c, _ = s.Draw()
	assert.Equal(t, "As", c.String())
}

func TestVerifyCompositionCatchesDuplicates(t *testing.T) {
	deck := NewDeck()
	deck[0] = deck[1]
	assert.Error(t, verifyComposition(deck, 1))
	assert.Error(t, verifyComposition(NewDeck()[:51], 1))
	assert.NoError(t, verifyComposition(NewDeck(), 1))
}

func TestParseCard(t *testing.T) {
	for in, want := range map[string]Card{
		"As":  {Rank: 14, Suit: 's'},
		"td":  {Rank: 10, Suit: 'd'},
		"10h": {Rank: 10, Suit: 'h'},
		"2c":  {Rank: 2, Suit: 'c'},
	} {
		got, err := ParseCard(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "A", "Ax", "1s", "11h"} {
		_, err := ParseCard(bad)
		assert.Error(t, err, bad)
	}
}

func TestCardJSON(t *testing.T) {
	b, err := json.Marshal(MustCards("As Td"))
	require.NoError(t, err)
	assert.JSONEq(t, `["As","Td"]`, string(b))

	var back []Card
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, MustCards("As Td"), back)
}

func TestDeckFollowsLibraryIdentity(t *testing.T) {
	deck := NewDeck()
	require.Len(t, deck, len(poker.Cards))
	for i, c := range deck {
		pc, err := toPH(c)
		require.NoError(t, err, c.String())
		assert.Equal(t, poker.Cards[i], pc, c.String())
	}
	assert.Equal(t, "Ac", deck[0].String())
	assert.Equal(t, "Ks", deck[51].String())
}

func TestInvalidCards(t *testing.T) {
	for _, c := range []Card{{}, {Rank: 1, Suit: 's'}, {Rank: 15, Suit: 'h'}, {Rank: 10, Suit: 'x'}} {
		assert.False(t, c.Valid(), "%d%c", c.Rank, c.Suit)
		assert.Equal(t, "??", c.String())
		_, err := toPH(c)
		assert.Error(t, err)
	}
	assert.True(t, Card{Rank: 14, Suit: 'd'}.Valid())

	_, err := fromPH(poker.Card(0))
	assert.Error(t, err)
}

func TestCardTextRoundTrip(t *testing.T) {
	for _, c := range NewDeck() {
		back, err := ParseCard(c.String())
		require.NoError(t, err, c.String())
		assert.Equal(t, c, back)
	}
}
