package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher holds the current configuration and reloads it when the backing
// file changes.
type Watcher struct {
	// OnChange is called from the watcher goroutine after each successful
	// reload.
	OnChange func(c *Config)

	path   string
	l      sync.RWMutex
	config *Config

	cancel context.CancelFunc
	done   chan bool
}

// NewWatcher loads path and returns a Watcher serving it. Call Start to
// begin watching for changes.
func NewWatcher(path string) (*Watcher, error) {
	config, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:   path,
		config: config,
		done:   make(chan bool),
	}, nil
}

func (w *Watcher) Get() *Config {
	w.l.RLock()
	defer w.l.RUnlock()
	return w.config
}

func waitForChange(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-watcher.Errors:
		return err
	case <-watcher.Events:
	}
	// Editors tend to write in several steps; let them settle.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second / 10):
	}
	return ctx.Err()
}

// Start watches the config file until Close. It is a no-op for a Watcher
// built without a file.
func (w *Watcher) Start() {
	if w.path == "" {
		close(w.done)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go func() {
		defer close(w.done)
		for ctx.Err() == nil {
			if err := waitForChange(ctx, w.path); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Errorf("Error waiting for config change: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			config, err := configFromFile(w.path)
			if err != nil {
				log.Errorf("Failed to load new config: %v", err)
				continue
			}
			log.WithField("path", w.path).Info("Configuration reloaded")
			w.l.Lock()
			w.config = config
			w.l.Unlock()
			if w.OnChange != nil {
				w.OnChange(config)
			}
		}
	}()
}

func (w *Watcher) Close() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}
