// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package variant

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

const (
	// DefaultDebounce is the quiet window after a filesystem event
	// before the catalog rescans.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultRescanPerSecond caps rescan frequency under sustained
	// churn.
	DefaultRescanPerSecond = 1.0
)

// defaultPatterns match the documentation formats the benchmark ships.
var defaultPatterns = []string{"**/*.md", "**/*.txt"}

// Options configures a DirCatalog. Zero values take package defaults.
type Options struct {
	// Patterns are doublestar globs matched against paths relative to
	// the catalog root.
	Patterns []string

	// Debounce is the quiet window before a rescan after filesystem
	// events.
	Debounce time.Duration

	// RescanPerSecond caps how often events may trigger a rescan.
	RescanPerSecond float64
}

// DirCatalog serves variants from a documentation directory. Each
// matching file is one variant named by its base name without
// extension. Watch keeps the catalog current as files change.
type DirCatalog struct {
	dir      string
	patterns []string
	debounce time.Duration
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu       sync.RWMutex
	variants map[string]Variant

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ Catalog = (*DirCatalog)(nil)

// NewDirCatalog scans dir and returns a catalog of its documentation
// files.
func NewDirCatalog(dir string, opts Options, logger *slog.Logger) (*DirCatalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &errors.ConfigError{Key: "variants.dir", Reason: "cannot open " + dir, Cause: err}
	}
	if !info.IsDir() {
		return nil, &errors.ConfigError{Key: "variants.dir", Reason: dir + " is not a directory"}
	}

	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, &errors.ConfigError{Key: "variants.patterns", Reason: "invalid glob " + p}
		}
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	perSecond := opts.RescanPerSecond
	if perSecond <= 0 {
		perSecond = DefaultRescanPerSecond
	}

	c := &DirCatalog{
		dir:      dir,
		patterns: patterns,
		debounce: debounce,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:   logger.With(slog.String("component", "variants"), slog.String("dir", dir)),
		variants: make(map[string]Variant),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if err := c.Rescan(); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the named variant.
func (c *DirCatalog) Get(name string) (Variant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variants[name]
	if !ok {
		return Variant{}, &errors.NotFoundError{Resource: "variant", ID: name}
	}
	return v, nil
}

// List returns all variants sorted by name.
func (c *DirCatalog) List() []Variant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Variant, 0, len(c.variants))
	for _, v := range c.variants {
		out = append(out, v)
	}
	sortByName(out)
	return out
}

// Load reads the documentation text of the named variant.
func (c *DirCatalog) Load(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := c.Get(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(v.Path)
	if err != nil {
		return "", errors.Wrapf(err, "loading variant %s", name)
	}
	return string(data), nil
}

// Rescan walks the documentation directory and rebuilds the variant
// set. On name collisions the lexically first path wins.
func (c *DirCatalog) Rescan() error {
	found := make(map[string]Variant)
	var dirs []string

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.dir {
				return err
			}
			c.logger.Debug("skipping unreadable path",
				slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		rel, err := filepath.Rel(c.dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !c.matches(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // deleted mid-walk
		}
		name := variantName(rel)
		if prev, dup := found[name]; dup {
			if prev.Path <= path {
				c.logger.Warn("duplicate variant name, keeping first",
					slog.String("name", name),
					slog.String("kept", prev.Path),
					slog.String("ignored", path))
				return nil
			}
			c.logger.Warn("duplicate variant name, keeping first",
				slog.String("name", name),
				slog.String("kept", path),
				slog.String("ignored", prev.Path))
		}
		found[name] = Variant{Name: name, Size: info.Size(), Path: path}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "scanning variants")
	}

	c.mu.Lock()
	c.variants = found
	watcher := c.watcher
	c.mu.Unlock()

	// Keep nested directories on the watch list; fsnotify does not
	// recurse on its own.
	if watcher != nil {
		for _, d := range dirs {
			if err := watcher.Add(d); err != nil {
				c.logger.Debug("cannot watch directory",
					slog.String("path", d), slog.Any("error", err))
			}
		}
	}

	c.logger.Debug("variants scanned", slog.Int("count", len(found)))
	return nil
}

// Watch starts tracking the documentation directory. Filesystem events
// are debounced, rate limited, and folded into rescans. Stop or cancel
// the context to halt.
func (c *DirCatalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating variant watcher")
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "watching %s", c.dir)
	}

	c.mu.Lock()
	c.watcher = watcher
	c.mu.Unlock()

	// Pick up directories that existed before the watcher did.
	if err := c.Rescan(); err != nil {
		watcher.Close()
		return err
	}

	go c.watchLoop(ctx, watcher)
	c.logger.Info("variant watcher started")
	return nil
}

// Stop halts the watcher and waits for the loop to exit. Safe to call
// more than once and before Watch.
func (c *DirCatalog) Stop() {
	c.mu.RLock()
	watching := c.watcher != nil
	c.mu.RUnlock()
	if !watching {
		return
	}
	c.stopOnce.Do(func() { close(c.stopCh) })
	<-c.doneCh
}

// watchLoop folds filesystem events into rescans. A timer gives the
// quiet window; the limiter defers the rescan when churn is sustained.
func (c *DirCatalog) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(c.doneCh)
	defer watcher.Close()

	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("variant watcher stopped (context cancelled)")
			return
		case <-c.stopCh:
			c.logger.Info("variant watcher stopped")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevantOp(event.Op) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(c.debounce)
				pending = timer.C
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("variant watcher error", slog.Any("error", err))
		case <-pending:
			if !c.limiter.Allow() {
				timer = time.NewTimer(c.debounce)
				pending = timer.C
				continue
			}
			timer = nil
			pending = nil
			if err := c.Rescan(); err != nil {
				c.logger.Warn("variant rescan failed", slog.Any("error", err))
			}
		}
	}
}

// relevantOp reports whether a filesystem operation can change the
// catalog. Chmod cannot.
func relevantOp(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) ||
		op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}

// matches reports whether a relative path matches any catalog pattern.
func (c *DirCatalog) matches(rel string) bool {
	for _, pattern := range c.patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// variantName derives the variant name from a relative path: the base
// name without its extension.
func variantName(rel string) string {
	base := rel
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
