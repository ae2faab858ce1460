package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjack-mcp/server/engine"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.DecisionTimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)

	tbl, err := cfg.Table()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultConfig(), tbl)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("BLACKJACK_DECKS", "8")
	t.Setenv("BLACKJACK_PAYOUT", "6/5")
	t.Setenv("BLACKJACK_ROUNDING", "Nearest")
	t.Setenv("BLACKJACK_DEALER_PEEK", "false")
	t.Setenv("BLACKJACK_MAX_BET", "500")
	t.Setenv("DECISION_TIMEOUT", "3s")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.DecisionTimeout)

	tbl, err := cfg.Table()
	require.NoError(t, err)
	assert.Equal(t, 8, tbl.Decks)
	assert.Equal(t, 6, tbl.PayoutNum)
	assert.Equal(t, 5, tbl.PayoutDen)
	assert.Equal(t, engine.RoundNearest, tbl.Rounding)
	assert.False(t, tbl.DealerPeek)
	assert.Equal(t, 500, tbl.MaxBet)
}

func TestParseRejectsBadRules(t *testing.T) {
	cases := map[string]string{
		"BLACKJACK_DECKS":    "1",
		"BLACKJACK_PAYOUT":   "three",
		"BLACKJACK_ROUNDING": "banker",
		"BLACKJACK_MIN_BET":  "0",
		"DECISION_TIMEOUT":   "0s",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

func TestLoggerLevel(t *testing.T) {
	log, err := Config{LogLevel: "debug"}.Logger()
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1))

	_, err = Config{LogLevel: "loud"}.Logger()
	assert.Error(t, err)
}
