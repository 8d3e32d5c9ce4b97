package cosmos

import "github.com/pkg/errors"

var (
	ErrStepRolledBack  = errors.New("cosmos: step failed and was rolled back")
	ErrBadSnapshot     = errors.New("cosmos: malformed significant state")
	ErrSnapshotVersion = errors.New("cosmos: unsupported snapshot version")
	ErrSnapshotMagic   = errors.New("cosmos: not a snapshot file")
	ErrInvalidTickrate = errors.New("cosmos: tickrate must be positive")
)
