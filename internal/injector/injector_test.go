package injector

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/internal/app"
)

func TestInitializeApp(t *testing.T) {
	dir := t.TempDir()
	userDir := filepath.Join(dir, "user")
	path := filepath.Join(dir, "server.yaml")
	yaml := fmt.Sprintf("tickrate: 30\nuser_dir: %q\nautosave_every_steps: 10\nsnapshot_db: snap.db\nlog_level: error\n", userDir)
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	a, cleanup, err := InitializeApp(app.ConfigPath(path))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, uint32(30), a.Vars.Tickrate)
	assert.Equal(t, app.UserDir(userDir), a.UserDir)
	require.NotNil(t, a.Store)
	assert.FileExists(t, filepath.Join(userDir, "snap.db"))
	assert.NotNil(t, a.Bus)
}

func TestInitializeAppRejectsInvalidVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tickrate: 0\n"), 0o644))

	_, _, err := InitializeApp(app.ConfigPath(path))
	assert.Error(t, err)
}
