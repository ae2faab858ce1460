package engine

import "errors"

var (
	ErrInvalidAction     = errors.New("invalid action")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTableFull         = errors.New("table full")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrGameNotStarted    = errors.New("game not started")
	ErrShoeExhausted     = errors.New("shoe exhausted")
	ErrUnknownSeat       = errors.New("unknown seat")
)
