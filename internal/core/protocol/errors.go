package protocol

import "github.com/pkg/errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrSendQueueFull    = errors.New("send queue is full")
	ErrMessageTooLarge  = errors.New("message too large")
	ErrEmptyFrame       = errors.New("empty frame")
	ErrUnknownMessage   = errors.New("unknown message type")
	ErrMalformed        = errors.New("malformed message")
)
