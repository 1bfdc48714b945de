package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultReloadDebounce = 250 * time.Millisecond

// KeywordsWatcher reloads a keywords file whenever it changes on disk and hands the
// parsed result to onChange. Invalid edits are logged and skipped; the last good
// vocabulary stays active.
type KeywordsWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func(Keywords) error
	debounce time.Duration
	started  bool
	done     chan struct{}
}

func NewKeywordsWatcher(path string, logger zerolog.Logger, onChange func(Keywords) error) (*KeywordsWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve keywords path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &KeywordsWatcher{
		path:     abs,
		watcher:  watcher,
		logger:   logger.With().Str("component", "keywords_watcher").Str("path", abs).Logger(),
		onChange: onChange,
		debounce: defaultReloadDebounce,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period before a reload. Call before Start.
func (w *KeywordsWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Start watches the file's directory so that editors that save by rename are seen.
func (w *KeywordsWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.started = true
	go w.loop(ctx)
	w.logger.Info().Msg("watching keywords file")
	return nil
}

// Close stops the watcher and waits for the loop to exit, if Start launched one.
func (w *KeywordsWatcher) Close() error {
	err := w.watcher.Close()
	if w.started {
		<-w.done
	}
	return err
}

func (w *KeywordsWatcher) loop(ctx context.Context) {
	defer close(w.done)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")
		}
	}
}

func (w *KeywordsWatcher) reload() {
	k, err := LoadKeywords(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("keywords reload skipped")
		return
	}
	if err := w.onChange(k); err != nil {
		w.logger.Warn().Err(err).Msg("keywords rejected")
		return
	}
	w.logger.Info().Int("search", len(k.Search)).Int("action", len(k.Action)).Msg("keywords reloaded")
}
