// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"blackjack-mcp/server/engine"
)

type Config struct {
	Decks         int    `env:"BLACKJACK_DECKS"          envDefault:"6"`
	StartingChips int    `env:"BLACKJACK_STARTING_CHIPS" envDefault:"100"`
	MinBet        int    `env:"BLACKJACK_MIN_BET"        envDefault:"1"`
	MaxBet        int    `env:"BLACKJACK_MAX_BET"        envDefault:"0"`
	MaxSeats      int    `env:"BLACKJACK_MAX_SEATS"      envDefault:"6"`
	ReshufflePct  int    `env:"BLACKJACK_RESHUFFLE_PCT"  envDefault:"20"`
	Payout        string `env:"BLACKJACK_PAYOUT"         envDefault:"3:2"`
	Rounding      string `env:"BLACKJACK_ROUNDING"       envDefault:"floor"`
	DealerPeek    bool   `env:"BLACKJACK_DEALER_PEEK"    envDefault:"true"`
	Seed          int64  `env:"BLACKJACK_SEED"           envDefault:"0"`

	HTTPAddr        string        `env:"HTTP_ADDR"        envDefault:":8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE"     envDefault:"false"`
	DecisionTimeout time.Duration `env:"DECISION_TIMEOUT" envDefault:"20s"`
	LLMModel        string        `env:"LLM_MODEL"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`

	JudgeSamples int  `env:"JUDGE_SAMPLES" envDefault:"2000"`
	JudgeEnabled bool `env:"JUDGE_ENABLED" envDefault:"true"`
}

// Load reads .env if present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Table(); err != nil {
		return Config{}, err
	}
	if cfg.DecisionTimeout <= 0 {
		return Config{}, fmt.Errorf("DECISION_TIMEOUT must be positive, got %s", cfg.DecisionTimeout)
	}
	return cfg, nil
}

// Table builds and validates the table rules.
func (c Config) Table() (engine.Config, error) {
	num, den, err := engine.ParsePayout(c.Payout)
	if err != nil {
		return engine.Config{}, err
	}
	t := engine.Config{
		Decks:         c.Decks,
		StartingChips: c.StartingChips,
		MinBet:        c.MinBet,
		MaxBet:        c.MaxBet,
		MaxSeats:      c.MaxSeats,
		ReshufflePct:  c.ReshufflePct,
		PayoutNum:     num,
		PayoutDen:     den,
		Rounding:      engine.Rounding(strings.ToLower(strings.TrimSpace(c.Rounding))),
		DealerPeek:    c.DealerPeek,
		Seed:          c.Seed,
	}
	if t.Decks < 2 {
		return engine.Config{}, fmt.Errorf("BLACKJACK_DECKS must be at least 2, got %d", t.Decks)
	}
	if err := t.Validate(); err != nil {
		return engine.Config{}, err
	}
	return t, nil
}

// Logger builds a zap logger on stderr; stdout carries the MCP stream.
func (c Config) Logger() (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
