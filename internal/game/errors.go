package game

import (
	"errors"
	"fmt"
	"time"
)

// Failure taxonomy for the throw pipeline and session layer. Callers match
// with errors.Is.
var (
	ErrValidation       = errors.New("invalid request")
	ErrNoActiveSession  = errors.New("no active game")
	ErrRoundComplete    = errors.New("round complete")
	ErrSessionMismatch  = errors.New("game id mismatch")
	ErrTooFast          = errors.New("throwing too fast")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// TooFastError reports a cooldown violation and how long the caller should
// wait before trying again.
type TooFastError struct {
	RetryAfter time.Duration
}

func (e *TooFastError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrTooFast, e.RetryAfter)
}

// Is makes errors.Is(err, ErrTooFast) match.
func (e *TooFastError) Is(target error) bool { return target == ErrTooFast }

// Invalid wraps ErrValidation with a human-readable reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
