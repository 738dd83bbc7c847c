// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeManager_AcquireRelease(t *testing.T) {
	root := t.TempDir()
	m, err := NewScopeManager(root)
	require.NoError(t, err)

	s, created, err := m.Acquire("prj_a")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, filepath.Join(root, "prj_a"), s.Dir)
	assert.DirExists(t, s.Dir)

	again, created, err := m.Acquire("prj_a")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, s, again)
	assert.Equal(t, []string{"prj_a"}, m.Active())

	require.NoError(t, m.Release("prj_a"))
	assert.NoDirExists(t, s.Dir)
	assert.Empty(t, m.Active())

	// Releasing twice is a no-op.
	assert.NoError(t, m.Release("prj_a"))
}

func TestScopeManager_RejectsPathIDs(t *testing.T) {
	m, err := NewScopeManager(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, _, err := m.Acquire(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestScopeManager_AdoptsExistingScopes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prj_old"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	m, err := NewScopeManager(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"prj_old"}, m.Active())

	_, created, err := m.Acquire("prj_old")
	require.NoError(t, err)
	assert.False(t, created)
}
