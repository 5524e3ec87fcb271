package slate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Mode selects the synthetic source the scene rotation renders.
type Mode string

const (
	ModeLife  Mode = "life"
	ModeSMPTE Mode = "smpte"
)

// ParseMode maps a raw fallback-mode file value onto a Mode, falling back
// to def for anything unrecognized (including an empty or unreadable file).
func ParseMode(raw, def string) Mode {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "life":
		return ModeLife
	case "smpte":
		return ModeSMPTE
	}
	return Mode(def)
}

// ReadMode reads the single-line fallback-mode file.
func ReadMode(path, def string) Mode {
	data, err := os.ReadFile(path)
	if err != nil {
		return Mode(def)
	}
	return ParseMode(string(data), def)
}

// ModeWatcher tracks the current fallback mode, re-read from disk whenever
// fsnotify reports the file changed. The scene loop polls Current() at
// scene boundaries rather than being interrupted mid-scene.
type ModeWatcher struct {
	path string
	def  string
	log  zerolog.Logger

	mu      sync.RWMutex
	current Mode
}

// NewModeWatcher builds a ModeWatcher with an initial synchronous read.
func NewModeWatcher(path, def string, log zerolog.Logger) *ModeWatcher {
	return &ModeWatcher{
		path:    path,
		def:     def,
		log:     log,
		current: ReadMode(path, def),
	}
}

// Current returns the most recently observed mode.
func (w *ModeWatcher) Current() Mode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Watch blocks, updating Current as the fallback-mode file changes, until
// ctx is cancelled. A missing parent directory or watcher setup failure is
// logged and treated as "no live updates" rather than fatal, since the
// initial synchronous read already seeded a usable mode.
func (w *ModeWatcher) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn().Err(err).Msg("fallback-mode watcher unavailable, live reload disabled")
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		w.log.Warn().Err(err).Str("dir", dir).Msg("cannot watch fallback-mode directory, live reload disabled")
		return
	}

	target := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			next := ReadMode(w.path, w.def)
			w.mu.Lock()
			changed := next != w.current
			w.current = next
			w.mu.Unlock()
			if changed {
				w.log.Info().Str("mode", string(next)).Msg("fallback mode updated")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("fallback-mode watcher error")
		}
	}
}

// String implements fmt.Stringer for logging.
func (m Mode) String() string {
	return string(m)
}
