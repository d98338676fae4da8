package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// ReloadDebounce collapses the burst of events one editor save produces.
const ReloadDebounce = 100 * time.Millisecond

// Watcher reloads a Config when its file changes on disk.
type Watcher struct {
	cfg     *Config
	fsw     *fsnotify.Watcher
	name    string
	closeCh chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// Watch starts watching the directory of cfg's file. The directory is
// watched rather than the file so atomic replace-by-rename is seen.
func Watch(cfg *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	path, err := filepath.Abs(cfg.Path())
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		cfg:     cfg,
		fsw:     fsw,
		name:    path,
		closeCh: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(ReloadDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(ReloadDebounce)
		case <-timer.C:
			if err := w.cfg.Reload(); err != nil {
				log.WithError(err).Warn("config: reload failed")
				continue
			}
			log.Debug("config: reloaded")
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("config: watch error")
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		w.wg.Wait()
		err = w.fsw.Close()
	})
	return err
}
