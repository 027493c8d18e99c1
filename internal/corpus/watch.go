package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/lucid/internal/cognitive"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 500 * time.Millisecond

// SyncFile loads the dataset at path and syncs the corpus to it.
func (s *Store) SyncFile(ctx context.Context, path string) (IngestStats, error) {
	records, err := cognitive.LoadDataset(path)
	if err != nil {
		return IngestStats{}, err
	}
	return s.Sync(ctx, records)
}

// Watch re-syncs the corpus whenever the dataset file changes, until ctx is
// done. The parent directory is watched so atomic renames are seen.
func (s *Store) Watch(ctx context.Context, path string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve dataset path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	log := s.log.With(zap.String("path", abs))
	log.Info("watching dataset")

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			stats, err := s.SyncFile(ctx, abs)
			if err != nil {
				log.Warn("dataset reload failed", zap.Error(err))
				continue
			}
			log.Info("dataset reloaded",
				zap.Int("embedded", stats.Embedded),
				zap.Int("unchanged", stats.Unchanged),
				zap.Int("removed", stats.Removed))
		}
	}
}
