// Package snapshots archives compressed world snapshots in SQLite.
package snapshots

import (
	"context"
	"database/sql"
	_ "embed"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/core/storage/interfaces"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

var (
	ErrNotFound = errors.New("snapshot not found")
	ErrNoPath   = errors.New("storage path is required")
)

var _ interfaces.SnapshotStore = (*Store)(nil)

type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens or creates the database at path. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoPath
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	// a second connection to :memory: would see an empty database
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite db")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save stores snap, replacing an earlier snapshot of the same step.
func (s *Store) Save(ctx context.Context, snap interfaces.Snapshot) error {
	created := snap.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (session, step, hash, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.Session.String(), int64(snap.Step), int64(snap.Hash), snap.Data, toMillis(created),
	)
	return errors.Wrap(err, "insert snapshot")
}

func (s *Store) scan(row *sql.Row) (interfaces.Snapshot, error) {
	var (
		session string
		step    int64
		hash    int64
		created int64
		snap    interfaces.Snapshot
	)
	if err := row.Scan(&session, &step, &hash, &snap.Data, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return interfaces.Snapshot{}, ErrNotFound
		}
		return interfaces.Snapshot{}, errors.Wrap(err, "scan snapshot")
	}
	id, err := uuid.Parse(session)
	if err != nil {
		return interfaces.Snapshot{}, errors.Wrap(err, "parse session id")
	}
	snap.Session = id
	snap.Step = uint64(step)
	snap.Hash = uint32(hash)
	snap.CreatedAt = fromMillis(created)
	return snap, nil
}

func (s *Store) Latest(ctx context.Context, session uuid.UUID) (interfaces.Snapshot, error) {
	return s.scan(s.db.QueryRowContext(ctx,
		`SELECT session, step, hash, data, created_at FROM snapshots
		 WHERE session = ? ORDER BY step DESC LIMIT 1`,
		session.String(),
	))
}

func (s *Store) At(ctx context.Context, session uuid.UUID, step uint64) (interfaces.Snapshot, error) {
	return s.scan(s.db.QueryRowContext(ctx,
		`SELECT session, step, hash, data, created_at FROM snapshots
		 WHERE session = ? AND step = ?`,
		session.String(), int64(step),
	))
}

func (s *Store) Prune(ctx context.Context, session uuid.UUID, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE session = ? AND step NOT IN (
		   SELECT step FROM snapshots WHERE session = ? ORDER BY step DESC LIMIT ?
		 )`,
		session.String(), session.String(), max(keep, 0),
	)
	if err != nil {
		return 0, errors.Wrap(err, "prune snapshots")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "prune snapshots")
}
