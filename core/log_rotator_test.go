package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRotator_RotatesToSingleBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	r, err := NewLogRotator(path, 1)
	require.NoError(t, err)
	defer r.Close()

	chunk := []byte(strings.Repeat("x", 600*1024) + "\n")
	for i := 0; i < 5; i++ {
		n, err := r.Write(chunk)
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(1<<20))

	_, err = os.Stat(r.BackupName())
	assert.NoError(t, err)

	matches, err := filepath.Glob(path + "*")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestLogRotator_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))

	r, err := NewLogRotator(path, 10)
	require.NoError(t, err)
	_, err = r.Write([]byte("next\n"))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous\nnext\n", string(data))

	_, err = r.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.NoError(t, r.Close())
}
