package workflow

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadCallback receives a freshly loaded definition
type ReloadCallback func(def *Definition)

// ErrorCallback receives load failures after a change
type ErrorCallback func(err error)

// WatcherConfig holds configuration for the watcher
type WatcherConfig struct {
	Path               string
	StabilityThreshold time.Duration
	OnReload           ReloadCallback
	OnError            ErrorCallback
}

// Watcher reloads a workflow file whenever it changes on disk. The parent
// directory is watched so editors that replace the file on save are seen.
type Watcher struct {
	watcher            *fsnotify.Watcher
	path               string
	stabilityThreshold time.Duration
	onReload           ReloadCallback
	onError            ErrorCallback

	done     chan struct{}
	timer    *time.Timer
	lastHash string
	mu       sync.Mutex
	stopOnce sync.Once
}

// NewWatcher creates a watcher for one workflow file
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("workflow path is required")
	}
	abs, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workflow path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if config.StabilityThreshold == 0 {
		config.StabilityThreshold = 100 * time.Millisecond
	}

	return &Watcher{
		watcher:            watcher,
		path:               abs,
		stabilityThreshold: config.StabilityThreshold,
		onReload:           config.OnReload,
		onError:            config.OnError,
		done:               make(chan struct{}),
	}, nil
}

// Start loads the file once, reports it, and begins watching
func (w *Watcher) Start() error {
	def, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.lastHash = def.Hash
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch workflow: %w", err)
	}

	go w.eventLoop()

	log.Info().Str("path", w.path).Msg("Workflow watcher started")

	if w.onReload != nil {
		w.onReload(def)
	}
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	log.Info().Str("path", w.path).Msg("Workflow watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.debounce()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", w.path).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

// debounce collapses bursts of writes into one reload
func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.stabilityThreshold, func() {
		select {
		case <-w.done:
			return
		default:
			w.reload()
		}
	})
}

func (w *Watcher) reload() {
	def, err := Load(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("Failed to reload workflow")
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	unchanged := def.Hash == w.lastHash
	w.lastHash = def.Hash
	w.mu.Unlock()

	if unchanged {
		return
	}

	log.Info().Str("path", w.path).Str("workflow", def.Name).Msg("Workflow reloaded")
	if w.onReload != nil {
		w.onReload(def)
	}
}
