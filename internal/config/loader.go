package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// reloadDebounce coalesces the burst of events most editors emit per save.
const reloadDebounce = 100 * time.Millisecond

// Loader reads a YAML scene file and watches it for changes.
type Loader struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	current  *SceneConfig
	onChange []func(*SceneConfig)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path, logger: slog.Default().With("component", "config")}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Path returns the file the loader reads.
func (l *Loader) Path() string { return l.path }

// Config returns the latest successfully parsed scene.
func (l *Loader) Config() *SceneConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked after every successful reload.
func (l *Loader) OnChange(fn func(*SceneConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch hot-reloads the scene when its file changes. The parent directory is
// watched so saves that replace the file by rename are seen too. Call the
// returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("scene watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("scene watcher add %s: %w", dir, err)
	}
	name := filepath.Clean(l.path)

	done := make(chan struct{})
	go func() {
		defer w.Close()
		var debounce *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != name || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				if debounce == nil {
					debounce = time.NewTimer(reloadDebounce)
				} else {
					debounce.Reset(reloadDebounce)
				}
				fire = debounce.C
			case <-fire:
				fire = nil
				if _, err := l.Reload(); err != nil {
					l.logger.Warn("scene reload failed, keeping previous", "path", l.path, "err", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Debug("scene watcher error", "err", err)
			case <-done:
				if debounce != nil {
					debounce.Stop()
				}
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload re-reads the scene file now and notifies OnChange callbacks.
func (l *Loader) Reload() (*SceneConfig, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*SceneConfig), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	l.logger.Info("scene reloaded", "path", l.path, "nodes", len(cfg.Nodes))
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*SceneConfig, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", l.path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", l.path, err)
	}
	return cfg, nil
}

// Parse decodes a scene document and applies defaults.
func Parse(data []byte) (*SceneConfig, error) {
	var cfg SceneConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg.Engine)
	return &cfg, nil
}

// ApplyDefaults fills zero-valued engine settings.
func ApplyDefaults(conf *EngineConf) {
	if conf.FrameRate == 0 {
		conf.FrameRate = 60
	}
	if conf.QueueDepth == 0 {
		conf.QueueDepth = 1024
	}
	if conf.CommandTimeoutMs == 0 {
		conf.CommandTimeoutMs = 2000
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
}
