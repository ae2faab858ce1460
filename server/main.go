package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"blackjack-mcp/server/agent"
	"blackjack-mcp/server/config"
	"blackjack-mcp/server/engine"
	"blackjack-mcp/server/judge"
	"blackjack-mcp/server/llm"
	"blackjack-mcp/server/mcptools"
	"blackjack-mcp/server/session"
	"blackjack-mcp/server/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "blackjack:", err)
		os.Exit(1)
	}
}

func run() error {
	var migrate, httpMode, play bool
	for _, a := range os.Args[1:] {
		switch a {
		case "--migrate":
			migrate = true
		case "--http":
			httpMode = true
		case "--play":
			play = true
		case "--mcp":
		default:
			return fmt.Errorf("unknown flag %q (want --mcp, --http, --play or --migrate)", a)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := openStore(ctx, cfg, log, migrate)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	if migrate {
		if db == nil {
			return store.ErrNoDSN
		}
		log.Info("migrated")
		return nil
	}

	rules, err := cfg.Table()
	if err != nil {
		return err
	}
	opts := session.Options{
		Rules:           rules,
		Store:           db,
		NewDecider:      deciderFactory(cfg.LLMModel, log),
		DecisionTimeout: cfg.DecisionTimeout,
		Log:             log,
	}
	if cfg.JudgeEnabled {
		opts.Judge = judge.New(cfg.JudgeSamples, rules.Decks, rules.DealerPeek, cfg.Seed)
	}
	reg := session.NewRegistry(opts)

	switch {
	case play:
		return playTerminal(ctx, reg)
	case httpMode:
		return serveHTTP(ctx, cfg.HTTPAddr, reg, log)
	}
	log.Info("mcp server on stdio", zap.String("rules", strings.ReplaceAll(rules.Describe(), "\n", " ")))
	return mcptools.Serve(ctx, mcptools.NewServer(reg, log))
}

// openStore connects when DATABASE_URL is set. Without one the tables run
// in memory only.
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger, migrate bool) (store.Store, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if !migrate {
			log.Info("no DATABASE_URL, bankrolls live in memory")
		}
		return nil, nil
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if migrate || cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

// deciderFactory hands out a model-backed decider when a model is named and
// the environment can reach it, otherwise basic strategy.
func deciderFactory(defaultModel string, log *zap.Logger) session.DeciderFactory {
	return func(name, model string) (engine.Decider, string) {
		if strings.TrimSpace(model) == "" {
			model = defaultModel
		}
		if model == "" || !llm.Configured(model) {
			return agent.BasicStrategy{}, "basic"
		}
		client, err := llm.New(model, llm.EnvOptions(), log.With(zap.String("seat", name)))
		if err != nil {
			log.Warn("llm unavailable, using basic strategy", zap.String("seat", name), zap.Error(err))
			return agent.BasicStrategy{}, "basic"
		}
		return agent.NewLLMDecider(client, log), client.Provider() + ":" + client.Model()
	}
}

func serveHTTP(ctx context.Context, addr string, reg *session.Registry, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(reg, log),
		ReadHeaderTimeout: 15 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
