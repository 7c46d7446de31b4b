package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/meshpack/meshpack/internal/config"
	"github.com/meshpack/meshpack/internal/domain/asset"
	"github.com/meshpack/meshpack/internal/logger"
	"github.com/meshpack/meshpack/internal/repository/packfile"
	"github.com/meshpack/meshpack/internal/runlock"
	"github.com/meshpack/meshpack/internal/scan"
	"github.com/meshpack/meshpack/internal/service/fetch"
	"github.com/meshpack/meshpack/internal/service/pack"
	"github.com/meshpack/meshpack/internal/service/publish"
	"github.com/meshpack/meshpack/internal/service/upload"
)

// watcher drives rebuild passes from filesystem events.
// It is unexported; callers should use Run.
type watcher struct {
	// cfg holds the loaded settings shared by every pass.
	cfg *config.Config
	// root is the watched pack root.
	root string
	// classifier decides which changed files belong to asset payloads.
	classifier *scan.Classifier
	// debounce is the quiet period before a pass starts.
	debounce time.Duration
	// upload enables blob transfers after each rebuild.
	upload bool
	// bucket is the transfer target, resolved when upload is enabled.
	bucket string
	// force re-sends blobs the store already has.
	force bool
}

// run performs an initial pass, then rebuilds after every settled burst
// of relevant events. It returns nil when the context is canceled.
func (w *watcher) run(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Best-effort cleanup.
	defer func() {
		_ = notifier.Close()
	}()

	if err = w.watchTree(notifier, w.root); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Watching pack root",
		"root", w.root,
		"debounce", w.debounce,
		"upload", w.upload)

	// The first pass brings the manifest in line with the tree before
	// any event arrives.
	w.pass(ctx)

	// A nil wakeup channel blocks forever, so the timer case only fires
	// while a burst is pending.
	var (
		timer  *time.Timer
		wakeup <-chan time.Time
	)

	for {
		select {
		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}

			if !w.shouldTrigger(ctx, notifier, event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				wakeup = timer.C

				continue
			}

			if !timer.Stop() {
				<-timer.C
			}

			timer.Reset(w.debounce)

		case <-wakeup:
			timer, wakeup = nil, nil

			w.pass(ctx)

		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}

			logger.WarnKV(ctx, "Watcher error", "error", err)

		case <-ctx.Done():
			logger.Info(ctx, "Watch stopped")

			return nil
		}
	}
}

// shouldTrigger reports whether the event warrants a rebuild pass and
// extends the watch onto directories that appear under the root.
func (w *watcher) shouldTrigger(ctx context.Context, notifier *fsnotify.Watcher, event fsnotify.Event) bool {
	if w.ignored(event.Name) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// Files dropped into the directory before the watch landed
			// fire no events of their own, so the pass covers them.
			if err = w.watchTree(notifier, event.Name); err != nil {
				logger.WarnKV(ctx, "Cannot watch new directory",
					"dir", event.Name,
					"error", err)
			}

			return true
		}
	}

	// A removed or renamed entry cannot be inspected anymore, so assume
	// it mattered.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return true
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	return w.tracked(event.Name)
}

// tracked reports whether the path feeds asset builds: a payload file,
// a thumbnail, or a descriptor.
func (w *watcher) tracked(path string) bool {
	base := filepath.Base(path)
	if base == asset.ThumbnailFilename || base == asset.DescriptorFilename {
		return true
	}

	return w.classifier.IsResourceFile(path)
}

// ignored reports whether the path is an artifact of the tool itself or
// a hidden entry. Such paths never extend the watch and never trigger a
// pass, which keeps manifest and record writes from looping back in.
func (w *watcher) ignored(path string) bool {
	relative, err := filepath.Rel(w.root, path)
	if err != nil || relative == "." {
		return false
	}

	segments := strings.Split(filepath.ToSlash(relative), "/")

	if segments[0] == publish.DefaultRecordsDirName || segments[0] == fetch.DefaultRestoreDirName {
		return true
	}

	for _, segment := range segments {
		if strings.HasPrefix(segment, ".") || strings.HasPrefix(segment, "~") {
			return true
		}
	}

	base := segments[len(segments)-1]

	return base == packfile.Filename || base == runlock.MarkerFilename
}

// watchTree adds watches for dir and every directory below it,
// skipping ignored subtrees.
func (w *watcher) watchTree(notifier *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		if path != dir && w.ignored(path) {
			return fs.SkipDir
		}

		if err = notifier.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}

		return nil
	})
}

// pass rebuilds the manifest and uploads when configured to. Failures
// are logged rather than returned so a broken tree state never stops
// the watch.
func (w *watcher) pass(ctx context.Context) {
	lock, err := runlock.Acquire(ctx, w.root)
	if err != nil {
		logger.WarnKV(ctx, "Skipping pass, pack root is busy", "error", err)

		return
	}

	// Best-effort cleanup.
	defer func() {
		_ = lock.Release()
	}()

	started := time.Now()

	if w.upload {
		packed, totals, err := upload.Execute(ctx, w.cfg, w.root, w.bucket, w.force)
		if err != nil {
			logger.ErrorKV(ctx, "Watch pass failed", "error", err)

			return
		}

		logger.InfoKV(ctx, "Watch pass completed",
			"assets", len(packed.Assets),
			"uploaded", totals.Uploaded,
			"skipped", totals.Skipped,
			"elapsed", time.Since(started))

		return
	}

	result, err := pack.Execute(ctx, w.cfg, w.root)
	if err != nil {
		logger.ErrorKV(ctx, "Watch pass failed", "error", err)

		return
	}

	logger.InfoKV(ctx, "Watch pass completed",
		"assets", len(result.Assets),
		"elapsed", time.Since(started))
}
