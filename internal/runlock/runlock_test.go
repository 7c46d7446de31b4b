package runlock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAcquireRelease checks the normal lifecycle: the marker appears on
// acquire, disappears on release, and the root can be locked again.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	lock, err := Acquire(context.Background(), root)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, MarkerFilename))
	require.NoError(t, err)

	require.NoError(t, lock.Release())

	_, err = os.Stat(filepath.Join(root, MarkerFilename))
	require.ErrorIs(t, err, os.ErrNotExist)

	lock, err = Acquire(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestAcquireWhileHeld checks that a root locked by a live process cannot
// be locked again.
func TestAcquireWhileHeld(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	lock, err := Acquire(context.Background(), root)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, lock.Release())
	}()

	_, err = Acquire(context.Background(), root)
	require.ErrorIs(t, err, ErrLocked)
}

// TestAcquireTakesOverDeadOwner checks that a marker recording a process
// that no longer exists is removed and the lock is taken over.
func TestAcquireTakesOverDeadOwner(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, MarkerFilename)

	require.NoError(t, os.WriteFile(path, []byte("2147483646\n"), 0o600))

	lock, err := Acquire(context.Background(), root)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, lock.Release())
	}()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "\n")
	require.NotEqual(t, "2147483646\n", string(contents))
}

// TestAcquireUnreadableMarkerAgesOut checks that a marker without a
// usable owner blocks while fresh and is taken over once it is old.
func TestAcquireUnreadableMarkerAgesOut(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, MarkerFilename)

	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o600))

	_, err := Acquire(context.Background(), root)
	require.ErrorIs(t, err, ErrLocked)

	expired := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, expired, expired))

	lock, err := Acquire(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestReleaseTwice checks that releasing an already released lock, or a
// nil one, does nothing.
func TestReleaseTwice(t *testing.T) {
	t.Parallel()

	lock, err := Acquire(context.Background(), t.TempDir())
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())

	var empty *Lock

	require.NoError(t, empty.Release())
}
