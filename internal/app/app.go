// Package app builds the process-wide context once at startup and hands its
// parts to the subsystems explicitly.
package app

import (
	"os"
	"path/filepath"

	"github.com/google/wire"
	"github.com/pkg/errors"
	"github.com/zeusync/lockstep/internal/config"
	"github.com/zeusync/lockstep/internal/core/events/bus"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/storage/interfaces"
	"github.com/zeusync/lockstep/internal/jobs"
	"github.com/zeusync/lockstep/internal/server"
	"github.com/zeusync/lockstep/internal/storage/snapshots"
)

// ConfigPath is the server vars file. Empty means defaults plus environment.
type ConfigPath string

// UserDir holds everything the server writes.
type UserDir string

type App struct {
	Vars    config.ServerVars
	Private config.PrivateVars
	Logger  log.Log
	Bus     bus.EventBus
	// Store is nil unless autosave is enabled.
	Store   interfaces.SnapshotStore
	UserDir UserDir
}

var ProviderSet = wire.NewSet(
	ProvideVars,
	ProvidePrivate,
	ProvideLogger,
	ProvideUserDir,
	ProvideBus,
	ProvideStore,
	wire.Struct(new(App), "*"),
)

func ProvideVars(path ConfigPath) (config.ServerVars, error) {
	return config.Load(string(path))
}

func ProvidePrivate() (config.PrivateVars, error) {
	return config.LoadPrivate()
}

func ProvideLogger(v config.ServerVars) (log.Log, func()) {
	logger := log.New(log.ParseLevel(v.LogLevel))
	return logger, func() { _ = logger.Sync() }
}

func ProvideUserDir(v config.ServerVars) (UserDir, error) {
	if err := os.MkdirAll(v.UserDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create user dir")
	}
	return UserDir(v.UserDir), nil
}

// ProvideBus returns the bus step messages are published on. Every message
// is logged at debug level.
func ProvideBus(logger log.Log) bus.EventBus {
	b := bus.New()
	logger = logger.With(log.String("component", "messages"))
	b.Subscribe(bus.AllKinds, func(e bus.Event) error {
		logger.Debug(e.Kind(), log.Step(e.Step))
		return nil
	})
	return b
}

func ProvideStore(v config.ServerVars, dir UserDir) (interfaces.SnapshotStore, func(), error) {
	if v.AutosaveEverySteps == 0 {
		return nil, func() {}, nil
	}
	path := v.SnapshotDB
	if path != ":memory:" && !filepath.IsAbs(path) {
		path = filepath.Join(string(dir), path)
	}
	store, err := snapshots.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// ServerDeps wires the context into a server.
func (a *App) ServerDeps() server.Deps {
	deps := server.Deps{
		Vars:    a.Vars,
		Private: a.Private,
		Logger:  a.Logger,
		Bus:     a.Bus,
		Store:   a.Store,
	}
	if len(a.Vars.AuthTokens) > 0 {
		deps.Auth = jobs.NewTokenList(a.Vars.AuthTokens...)
	}
	return deps
}
