package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/platformbuilds/countgate/pkg/logger"
)

// ConfigWatcher reloads the configuration file when it changes and serves the
// latest connection settings. A reload that fails validation keeps the
// previous configuration.
type ConfigWatcher struct {
	config     *Config
	configPath string
	logger     logger.Logger
	mu         sync.RWMutex
	watchers   []func(*Config)
	stopCh     chan struct{}
	stopOnce   sync.Once
	load       func(string) (*Config, error)
}

func NewConfigWatcher(configPath string, initial *Config, logger logger.Logger) *ConfigWatcher {
	return &ConfigWatcher{
		config:     initial,
		configPath: configPath,
		logger:     logger,
		watchers:   make([]func(*Config), 0),
		stopCh:     make(chan struct{}),
		load:       Load,
	}
}

// Start begins watching for configuration file changes. It blocks until ctx
// is done or Stop is called.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and ConfigMap mounts replace the file
	// rather than writing it in place.
	dir := filepath.Dir(w.configPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	target := filepath.Clean(w.configPath)

	w.logger.Info("Configuration watcher started", "configPath", w.configPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			w.logger.Info("Configuration file changed, reloading", "file", event.Name)
			if err := w.Reload(); err != nil {
				w.logger.Error("Failed to reload configuration", "error", err)
				continue
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Configuration watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Info("Configuration watcher stopping")
			return nil

		case <-w.stopCh:
			w.logger.Info("Configuration watcher stopped")
			return nil
		}
	}
}

// RegisterWatcher adds a callback for configuration changes
func (w *ConfigWatcher) RegisterWatcher(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watchers = append(w.watchers, callback)
}

// GetConfig returns the current configuration (thread-safe)
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Connection implements ConnectionProvider.
func (w *ConfigWatcher) Connection() ConnectionConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.config == nil {
		return GetDefaultConfig().Connection
	}
	return w.config.Connection
}

// Stop stops the configuration watcher
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Reload re-reads the configuration file and notifies callbacks.
func (w *ConfigWatcher) Reload() error {
	newConfig, err := w.load(w.configPath)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.config = newConfig
	callbacks := make([]func(*Config), len(w.watchers))
	copy(callbacks, w.watchers)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded successfully", "host", newConfig.Connection.Host)

	for _, cb := range callbacks {
		w.notify(cb, newConfig)
	}
	return nil
}

func (w *ConfigWatcher) notify(cb func(*Config), cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Configuration watcher callback panicked", "panic", r)
		}
	}()
	cb(cfg)
}
