// Package spool watches a directory for event files dropped by collectors.
//
// Collectors write a file elsewhere (or under a hidden name) and rename it
// into the spool directory, so a Create event always sees a complete file.
// Each file is handed to a Handler once; afterwards it is moved to done/ or
// failed/ so a restart never processes it twice.
package spool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/pulse/internal/logger"
)

// Subdirectories that receive processed files.
const (
	DoneDir   = "done"
	FailedDir = "failed"
)

// Ext is the extension of spool files.
const Ext = ".jsonl"

// Handler processes one spool file. A non-nil error moves the file to failed/.
type Handler func(ctx context.Context, path string) error

// Watcher feeds spool files to a Handler.
type Watcher struct {
	dir    string
	handle Handler
}

// New creates a watcher for dir.
func New(dir string, handle Handler) *Watcher {
	return &Watcher{dir: dir, handle: handle}
}

// Run processes the files already in the directory, then every file that
// appears until ctx is cancelled. Files are handled one at a time in the
// order they arrive.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return fmt.Errorf("create %s dir: %w", sub, err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	// Watch before the initial scan so nothing dropped in between is missed.
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	pending, err := w.existing()
	if err != nil {
		return err
	}
	for _, path := range pending {
		if ctx.Err() != nil {
			return nil
		}
		w.process(ctx, path)
	}

	logger.Ctx(ctx).Info().Str("dir", w.dir).Msg("watching spool directory")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.handleFsEvent(event); ok {
				w.process(ctx, path)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("spool watcher: %v", err)
		}
	}
}

// ProcessExisting handles the files currently in the directory and returns
// how many succeeded and failed.
func (w *Watcher) ProcessExisting(ctx context.Context) (done, failed int, err error) {
	for _, sub := range []string{DoneDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return 0, 0, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	paths, err := w.existing()
	if err != nil {
		return 0, 0, err
	}
	for _, path := range paths {
		if w.process(ctx, path) {
			done++
		} else {
			failed++
		}
	}
	return done, failed, nil
}

// handleFsEvent returns the path to process for a Create of a spool file.
func (w *Watcher) handleFsEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) {
		return "", false
	}
	if filepath.Dir(event.Name) != filepath.Clean(w.dir) || !isSpoolFile(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}

// existing lists spool files in name order.
func (w *Watcher) existing() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read spool dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && isSpoolFile(e.Name()) {
			paths = append(paths, filepath.Join(w.dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// process runs the handler and files the result. It reports success.
func (w *Watcher) process(ctx context.Context, path string) bool {
	log := logger.Ctx(ctx).With().Str("file", filepath.Base(path)).Logger()

	target := DoneDir
	herr := w.handle(ctx, path)
	if herr != nil {
		target = FailedDir
		log.Error().Err(herr).Msg("spool file failed")
	} else {
		log.Info().Msg("spool file ingested")
	}

	dest := filepath.Join(w.dir, target, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		log.Error().Err(err).Str("dest", dest).Msg("move spool file")
		return false
	}
	return herr == nil
}

func isSpoolFile(path string) bool {
	name := filepath.Base(path)
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, Ext)
}
