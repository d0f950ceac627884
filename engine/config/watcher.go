package config

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/array/engine/core"
)

// Watcher reloads a config file when it changes and fires
// EVENT_CODE_CONFIG_RELOADED with the new *Config. A file that fails to parse
// is logged and ignored, the previous config stays in effect.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	current *Config

	done chan struct{}
	wg   sync.WaitGroup
}

// Watch observes the directory holding cfg's file, editors usually replace
// files rather than writing them in place.
func Watch(cfg *Config) (*Watcher, error) {
	if cfg.path == "" {
		return nil, errors.New("config was not loaded from a file")
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path, err := filepath.Abs(cfg.path)
	if err != nil {
		fsWatch.Close()
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(path)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		watcher: fsWatch,
		current: cfg,
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	core.LogDebug("watching config file %s", path)
	return w, nil
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name, err := filepath.Abs(e.Name)
			if err != nil || name != w.path {
				continue
			}
			if e.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("config watcher: %s", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	path := w.current.path
	w.mu.Unlock()

	cfg, err := Load(path)
	if err != nil {
		core.LogWarn("ignoring config change: %s", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()

	core.LogInfo("config %s reloaded", path)
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_CONFIG_RELOADED,
		Data: cfg,
	})
}

// Current is the last config that loaded successfully.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
