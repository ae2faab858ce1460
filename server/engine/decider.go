package engine

import "context"

// View is what a seat can observe when deciding: its own cards and the
// dealer's up card, never the hole card.
type View struct {
	SeatID   string       `json:"seat_id"`
	Name     string       `json:"name"`
	Hand     []Card       `json:"hand"`
	Score    Score        `json:"score"`
	DealerUp Card         `json:"dealer_up"`
	Legal    []ActionKind `json:"legal"`
	Chips    int          `json:"chips"`
	Bet      int          `json:"bet"`
	Round    int          `json:"round"`
}

func (v View) CanDouble() bool {
	for _, a := range v.Legal {
		if a == DoubleDown {
			return true
		}
	}
	return false
}

// Decider supplies actions for automated seats.
type Decider interface {
	Decide(ctx context.Context, v View) (ActionKind, error)
}

type DeciderFunc func(ctx context.Context, v View) (ActionKind, error)

func (f DeciderFunc) Decide(ctx context.Context, v View) (ActionKind, error) { return f(ctx, v) }

// Decision pairs an applied action with the view it was chosen from.
type Decision struct {
	View   View       `json:"view"`
	Action ActionKind `json:"action"`
}
