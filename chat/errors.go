package chat

import "errors"

// Sentinel errors for common error conditions.
var (
	ErrNoActiveTurn  = errors.New("no turn in progress")
	ErrTurnActive    = errors.New("a turn is already in progress")
	ErrSessionClosed = errors.New("session is closed")
)
