// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-redfish.
//
// go-redfish is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeremyhahn/go-redfish/pkg/adapters"
)

// DefaultDebounce collapses the burst of events an editor produces when it
// saves a file.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// OnChange is called with each successfully reloaded configuration.
	OnChange func(*Config)

	// Logger receives reload failures. Defaults to a no-op logger.
	Logger adapters.Logger

	// Debounce is the quiet period before a reload. Defaults to
	// DefaultDebounce.
	Debounce time.Duration
}

// Watcher keeps a configuration file loaded and reloads it when the file
// changes. A file that fails to parse leaves the previous configuration in
// place.
type Watcher struct {
	path     string
	current  atomic.Pointer[Config]
	watcher  *fsnotify.Watcher
	opts     WatchOptions
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Watch loads path and starts watching it.
func Watch(path string, opts WatchOptions) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = adapters.NewNoOpLogger()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: atomic replacements swap the file's inode.
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    abs,
		watcher: fw,
		opts:    opts,
		done:    make(chan struct{}),
	}
	w.current.Store(cfg)

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Close stops watching. Later calls are no-ops.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			reload = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.opts.Logger.Warn(context.Background(), "Configuration watch error", adapters.ErrorField(err))
		case <-reload:
			reload = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	ctx := context.Background()
	cfg, err := Load(w.path)
	if err != nil {
		w.opts.Logger.Warn(ctx, "Keeping previous configuration",
			adapters.Field{Key: "path", Value: w.path},
			adapters.ErrorField(err),
		)
		return
	}
	w.current.Store(cfg)
	w.opts.Logger.Info(ctx, "Configuration reloaded",
		adapters.Field{Key: "path", Value: w.path},
		adapters.Field{Key: "backend", Value: cfg.Backend},
	)
	if w.opts.OnChange != nil {
		w.opts.OnChange(cfg)
	}
}
