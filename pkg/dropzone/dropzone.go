// Package dropzone turns a watched folder into a drop target.
//
// Files that land in the folder are collected until the folder has been
// quiet for a moment, then handed over as one drop in arrival order, the
// way a drag-and-drop of several files arrives at once. Only names matching
// the glob pattern are considered.
package dropzone

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/matzehuels/collage/pkg/ingest"
)

// DefaultQuiet is how long the folder must be idle before a drop fires.
const DefaultQuiet = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Pattern is a glob matched against lower-cased base names. Empty
	// matches every known image extension.
	Pattern string

	// Quiet is the idle period that ends a drop.
	Quiet time.Duration

	Logger *log.Logger
}

// Handler receives one drop.
type Handler func(ctx context.Context, paths []string)

// Watcher watches one directory.
type Watcher struct {
	dir    string
	match  glob.Glob
	quiet  time.Duration
	logger *log.Logger
	fs     *fsnotify.Watcher
}

// DefaultPattern matches every extension on the ingest allow-list.
func DefaultPattern() string {
	var exts []string
	for _, f := range ingest.Formats() {
		for _, ext := range f.Extensions {
			exts = append(exts, strings.TrimPrefix(ext, "."))
		}
	}
	return "*.{" + strings.Join(exts, ",") + "}"
}

// New starts watching dir.
func New(dir string, opts Options) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern()
	}
	match, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuiet
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to add directory %s to watcher: %w", dir, err)
	}

	return &Watcher{
		dir:    dir,
		match:  match,
		quiet:  opts.Quiet,
		logger: opts.Logger,
		fs:     fs,
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Match reports whether a file name is picked up.
func (w *Watcher) Match(name string) bool {
	return w.match.Match(strings.ToLower(filepath.Base(name)))
}

// Run delivers drops to fn until ctx is done, then closes the watcher.
// fn runs on the watcher goroutine; files arriving meanwhile form the next
// drop.
func (w *Watcher) Run(ctx context.Context, fn Handler) error {
	defer w.fs.Close()

	timer := time.NewTimer(w.quiet)
	timer.Stop()
	defer timer.Stop()

	var (
		pending []string
		seen    = make(map[string]bool)
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !w.Match(event.Name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				if !os.IsNotExist(err) {
					w.logger.Warn("error stating file", "file", event.Name, "error", err)
				}
				continue
			}
			if !info.Mode().IsRegular() {
				continue
			}
			if !seen[event.Name] {
				seen[event.Name] = true
				pending = append(pending, event.Name)
			}
			timer.Reset(w.quiet)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			drop := pending
			pending, seen = nil, make(map[string]bool)
			w.logger.Debug("drop", "files", len(drop))
			fn(ctx, drop)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fsnotify watcher error", "error", err)
		}
	}
}
