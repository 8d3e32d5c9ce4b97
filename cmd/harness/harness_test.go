package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/lockstep/internal/core/observability/log"
	"github.com/zeusync/lockstep/internal/core/stepping"
)

func TestRecordedSessionReplaysWithoutDivergence(t *testing.T) {
	opts := recordOptions{steps: 240, tickrate: 60, seed: 3}
	session := recordSession(opts)
	assert.Equal(t, uint64(240), session.Length)
	assert.NotEmpty(t, session.Records)

	path := filepath.Join(t.TempDir(), "session.lsrs")
	require.NoError(t, session.SaveFile(path))

	loaded, err := stepping.LoadSessionFile(path)
	require.NoError(t, err)
	assert.Equal(t, session.Records, loaded.Records)

	require.NoError(t, runSession(log.Nop(), path, runOptions{clones: 3, seed: 1}))
}

func TestRecordingIsReproducible(t *testing.T) {
	opts := recordOptions{steps: 120, tickrate: 30, seed: 11}
	assert.Equal(t, recordSession(opts).Records, recordSession(opts).Records)
}
