//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestOSReadLockedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("cells"), 0o644))

	holder, err := os.Open(path)
	require.NoError(t, err)
	defer holder.Close()
	require.NoError(t, unix.Flock(int(holder.Fd()), unix.LOCK_EX|unix.LOCK_NB))

	_, err = OS{}.Read(path)
	assert.ErrorIs(t, err, ErrLocked)
	assert.True(t, Skippable(err))

	require.NoError(t, unix.Flock(int(holder.Fd()), unix.LOCK_UN))
	data, err := OS{}.Read(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("cells"), data)
}
