package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/readaid/internal/model"
)

// LoadRegions reads a JSON region snapshot file.
func LoadRegions(path string) (model.RegionSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RegionSnapshot{}, fmt.Errorf("failed to read regions: %w", err)
	}
	var snap model.RegionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.RegionSnapshot{}, fmt.Errorf("failed to decode regions: %w", err)
	}
	return snap, nil
}

// RegionWatcher reloads a region snapshot file whenever it is rewritten.
type RegionWatcher struct {
	path      string
	watcher   *fsnotify.Watcher
	snapshots chan model.RegionSnapshot
	done      chan struct{}
	logger    zerolog.Logger
	once      sync.Once
	wg        sync.WaitGroup
}

// NewRegionWatcher watches the directory holding path. Editors that replace
// the file by rename are covered by reacting to Create as well as Write.
func NewRegionWatcher(path string, logger zerolog.Logger) (*RegionWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve regions path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		if cerr := watcher.Close(); cerr != nil {
			// Best-effort close on setup failure.
			_ = cerr
		}
		return nil, fmt.Errorf("failed to watch regions: %w", err)
	}
	rw := &RegionWatcher{
		path:      abs,
		watcher:   watcher,
		snapshots: make(chan model.RegionSnapshot, 1),
		done:      make(chan struct{}),
		logger:    logger.With().Str("component", "region-watcher").Logger(),
	}
	rw.wg.Add(1)
	go rw.watchLoop()
	return rw, nil
}

// Snapshots delivers each successfully reloaded snapshot. Only the newest
// pending snapshot is kept.
func (rw *RegionWatcher) Snapshots() <-chan model.RegionSnapshot {
	return rw.snapshots
}

// Close stops watching.
func (rw *RegionWatcher) Close() error {
	var err error
	rw.once.Do(func() {
		close(rw.done)
		err = rw.watcher.Close()
		rw.wg.Wait()
	})
	return err
}

func (rw *RegionWatcher) watchLoop() {
	defer rw.wg.Done()
	for {
		select {
		case <-rw.done:
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != rw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			snap, err := LoadRegions(rw.path)
			if err != nil {
				rw.logger.Warn().Err(err).Msg("region reload failed")
				continue
			}
			rw.logger.Debug().Int("regions", len(snap.Regions)).Msg("regions reloaded")
			rw.publish(snap)
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.logger.Warn().Err(err).Msg("region watcher error")
		}
	}
}

func (rw *RegionWatcher) publish(snap model.RegionSnapshot) {
	for {
		select {
		case rw.snapshots <- snap:
			return
		default:
		}
		select {
		case <-rw.snapshots:
		default:
		}
	}
}
