// Package runlock guards a pack root against concurrent runs over the
// same asset tree. The lock is a marker file holding the owner's process
// identifier; a marker whose owner no longer runs is taken over instead
// of blocking forever.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ps "github.com/mitchellh/go-ps"

	"github.com/meshpack/meshpack/internal/logger"
)

const (
	// MarkerFilename marks that a run is active inside a pack root. The
	// name deliberately avoids payload extensions so the marker never
	// shows up in a scanned asset tree.
	MarkerFilename = ".meshpack-run.lock"

	// markerLifetime is the period after which a marker whose owner
	// cannot be determined is considered abandoned.
	markerLifetime = 30 * time.Minute
)

// ErrLocked indicates another run currently owns the pack root.
var ErrLocked = errors.New("another run is active")

// Lock is a held run marker.
type Lock struct {
	path string
}

// Acquire creates the run marker inside root. A marker left behind by a
// process that is gone is removed and taken over; a marker owned by a
// live process fails the call with ErrLocked.
func Acquire(ctx context.Context, root string) (*Lock, error) {
	path := filepath.Join(root, MarkerFilename)

	// Two attempts: the second one runs after a stale marker was removed.
	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			if _, err = fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
				// Best-effort cleanup.
				file.Close()
				os.Remove(path)

				return nil, fmt.Errorf("write run marker: %w", err)
			}

			if err = file.Close(); err != nil {
				// Best-effort cleanup.
				os.Remove(path)

				return nil, fmt.Errorf("write run marker: %w", err)
			}

			return &Lock{path: path}, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create run marker: %w", err)
		}

		if ownerAlive(ctx, path) {
			return nil, fmt.Errorf("%s: %w", root, ErrLocked)
		}

		logger.InfoKV(ctx, "Removing abandoned run marker", "path", path)

		if err = os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove abandoned run marker: %w", err)
		}
	}

	return nil, fmt.Errorf("%s: %w", root, ErrLocked)
}

// Release removes the marker. Releasing twice is harmless.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove run marker: %w", err)
	}

	return nil
}

// ownerAlive reports whether the process recorded in the marker still
// runs. When the owner cannot be determined the marker is treated as
// alive until it exceeds markerLifetime, erring on the safe side.
func ownerAlive(ctx context.Context, path string) bool {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return !stale(path)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return !stale(path)
	}

	if pid == os.Getpid() {
		return true
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		logger.WarnKV(ctx, "Process lookup failed", "pid", pid, "error", err)

		return !stale(path)
	}

	return process != nil
}

// stale reports whether the marker's last write is older than markerLifetime.
func stale(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}

	return time.Since(info.ModTime()) > markerLifetime
}
