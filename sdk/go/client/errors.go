package client

import "github.com/pkg/errors"

// Client-specific errors
var (
	ErrClientClosed      = errors.New("client is closed")
	ErrNotConnected      = errors.New("client is not connected")
	ErrAlreadyConnected  = errors.New("client is already connected")
	ErrInvalidConfig     = errors.New("invalid client configuration")
	ErrUnknownTransport  = errors.New("unknown transport")
	ErrConnectionTimeout = errors.New("connection timeout")
)
