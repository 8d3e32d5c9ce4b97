package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/internal/config"
	"github.com/zeusync/lockstep/internal/core/cosmos"
	"github.com/zeusync/lockstep/internal/core/events/bus"
	"github.com/zeusync/lockstep/internal/core/observability/log"
)

func TestStoreOnlyWithAutosave(t *testing.T) {
	v := config.Default()
	store, cleanup, err := ProvideStore(v, UserDir(t.TempDir()))
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, store)

	v.AutosaveEverySteps = 5
	v.SnapshotDB = ":memory:"
	store, cleanup, err = ProvideStore(v, UserDir(t.TempDir()))
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, store)
}

func TestUserDirIsCreated(t *testing.T) {
	v := config.Default()
	v.UserDir = filepath.Join(t.TempDir(), "a", "b")
	dir, err := ProvideUserDir(v)
	require.NoError(t, err)
	assert.DirExists(t, string(dir))
}

func TestBusAcceptsMessages(t *testing.T) {
	b := ProvideBus(log.Nop())
	err := b.Publish(bus.FromMessages(1, time.Now(), cosmos.Messages{cosmos.MatchPaused{}})...)
	assert.NoError(t, err)
}

func TestServerDepsUsesTokens(t *testing.T) {
	a := &App{Vars: config.Default(), Logger: log.Nop()}
	assert.Nil(t, a.ServerDeps().Auth)

	a.Vars.AuthTokens = []string{"secret"}
	deps := a.ServerDeps()
	require.NotNil(t, deps.Auth)
	assert.NoError(t, deps.Auth.Verify(t.Context(), "alice", "secret"))
	assert.Error(t, deps.Auth.Verify(t.Context(), "alice", "guess"))
}
