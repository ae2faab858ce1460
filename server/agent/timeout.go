package agent

import (
	"context"
	"time"

	"blackjack-mcp/server/engine"
	"go.uber.org/zap"
)

// Bounded stands the seat when the inner decider errors or takes longer
// than its timeout.
type Bounded struct {
	inner   engine.Decider
	timeout time.Duration
	log     *zap.Logger
}

func WithTimeout(inner engine.Decider, timeout time.Duration, log *zap.Logger) *Bounded {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bounded{inner: inner, timeout: timeout, log: log}
}

type decided struct {
	act engine.ActionKind
	err error
}

func (b *Bounded) Decide(ctx context.Context, v engine.View) (engine.ActionKind, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	done := make(chan decided, 1)
	go func() {
		act, err := b.inner.Decide(ctx, v)
		done <- decided{act, err}
	}()
	select {
	case d := <-done:
		if d.err != nil {
			b.log.Warn("decider failed, standing", zap.String("seat", v.Name), zap.Error(d.err))
			return engine.Stand, nil
		}
		return d.act, nil
	case <-ctx.Done():
		b.log.Warn("decider timed out, standing", zap.String("seat", v.Name), zap.Duration("timeout", b.timeout))
		return engine.Stand, nil
	}
}
