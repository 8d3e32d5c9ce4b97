package rcon

import "github.com/pkg/errors"

var (
	ErrDenied         = errors.New("rcon: access denied")
	ErrUnauthorized   = errors.New("rcon: command needs master access")
	ErrUnknownCommand = errors.New("rcon: unknown command")
	ErrUnknownRule    = errors.New("rcon: unknown rule")
	ErrNoTarget       = errors.New("rcon: no player given")
	ErrRateLimited    = errors.New("rcon: too many attempts")
	ErrBadPayload     = errors.New("rcon: bad payload")
)
