package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher monitors the config file via fsnotify and reloads it on change.
// Only settings that are safe to change at runtime are propagated; structural
// settings (paths, interfaces) require a restart and are reported but not
// applied.
type Watcher struct {
	path     string
	onChange func(Config)
	log      zerolog.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for the config file at path. onChange is
// invoked with the freshly loaded config after each debounced change.
func NewWatcher(path string, log zerolog.Logger, onChange func(Config)) *Watcher {
	return &Watcher{path: path, onChange: onChange, log: log}
}

// Run watches the config file's directory until ctx is canceled. Editors
// replace files rather than writing in place, so the directory is watched
// and events are filtered by name.
func (w *Watcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Error().Err(err).Msg("config watcher: create failed")
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		w.log.Error().Err(err).Str("dir", dir).Msg("config watcher: watch failed")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload(100 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("config watcher: error")
		}
	}
}

func (w *Watcher) debounceReload(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.reload)
}

func (w *Watcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload failed")
		return
	}

	cfg := DefaultConfig()
	if err := ApplyFileConfig(&cfg, fc, nil); err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload rejected")
		return
	}
	if err := cfg.Validate(); err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload invalid")
		return
	}

	w.log.Info().Str("path", w.path).Msg("configuration reloaded")
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
