package server

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrServerClosed   = errors.New("server is closed")
	ErrShutdown       = errors.New("shutdown requested")
	ErrInvalidConfig  = errors.New("invalid server configuration")
	ErrTickFailed     = errors.New("tick failed")
	ErrUnknownClient  = errors.New("unknown client")
	ErrAlreadyRunning = errors.New("server is already running")
)

// TickError reports a step the world could not advance. It matches
// ErrTickFailed and unwraps to the cause.
type TickError struct {
	Step uint64
	Err  error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("%v at step %d: %v", ErrTickFailed, e.Step, e.Err)
}

func (e *TickError) Unwrap() error { return e.Err }

func (e *TickError) Is(target error) bool { return target == ErrTickFailed }

// Kick reasons shown to the kicked player and everyone else.
const (
	ReasonTimedOut        = "Connection timed out!"
	ReasonUnauthenticated = "Account is required to play on this server!"
	ReasonVersion         = "Incompatible client version."
	ReasonNickname        = "A nickname is required."
	ReasonUnexpected      = "Unexpected message."
	ReasonAdmin           = "Kicked by an administrator."
	ReasonFull            = "Server is full."
	ReasonShutdown        = "Server is shutting down."
)
