package agent

import (
	"context"

	"blackjack-mcp/server/engine"
	"go.uber.org/zap"
)

// Chooser picks one of legal given a system and user prompt.
type Chooser interface {
	ChooseAction(ctx context.Context, system, user string, legal []string) (action string, raw string, err error)
}

// LLMDecider asks a model and falls back to basic strategy when the model
// errors or answers with something illegal.
type LLMDecider struct {
	llm      Chooser
	fallback engine.Decider
	log      *zap.Logger
}

func NewLLMDecider(c Chooser, log *zap.Logger) *LLMDecider {
	if log == nil {
		log = zap.NewNop()
	}
	return &LLMDecider{llm: c, fallback: BasicStrategy{}, log: log}
}

func (d *LLMDecider) Decide(ctx context.Context, v engine.View) (engine.ActionKind, error) {
	obs := BuildObservation(v)
	act, raw, err := d.llm.ChooseAction(ctx, SystemPrompt, obs.Prompt(), obs.Legal)
	if err == nil {
		err = Validate(obs, ActionOut{Action: act})
	}
	if err != nil {
		d.log.Warn("model decision failed, using basic strategy",
			zap.String("seat", v.Name),
			zap.String("raw", raw),
			zap.Error(err))
		return d.fallback.Decide(ctx, v)
	}
	d.log.Debug("model decision", zap.String("seat", v.Name), zap.String("action", act))
	return engine.ActionKind(act), nil
}
