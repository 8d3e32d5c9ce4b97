package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Snapshot is one archived copy of significant state.
type Snapshot struct {
	Session   uuid.UUID
	Step      uint64
	Hash      uint32
	Data      []byte
	CreatedAt time.Time
}

// SnapshotStore archives snapshots of a running session.
type SnapshotStore interface {
	Save(ctx context.Context, snap Snapshot) error
	Latest(ctx context.Context, session uuid.UUID) (Snapshot, error)
	At(ctx context.Context, session uuid.UUID, step uint64) (Snapshot, error)
	// Prune keeps the newest keep snapshots of session and reports how many
	// were removed.
	Prune(ctx context.Context, session uuid.UUID, keep int) (int64, error)
	Close() error
}
