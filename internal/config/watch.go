package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
)

// DefaultDebounce collapses the burst of events editors emit on save.
const DefaultDebounce = 100 * time.Millisecond

// Watch calls onChange after any of the files in paths is written, created,
// renamed or removed. The parent directories are watched so files created
// after startup are seen too; directories that do not exist are skipped.
// Rapid changes are debounced into one call. Watch returns once the watcher
// is running and stops it when ctx is cancelled.
func Watch(ctx context.Context, paths []string, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	wanted := make(map[string]bool, len(paths))
	for _, p := range paths {
		wanted[filepath.Clean(p)] = true
	}
	dirs := lo.Uniq(lo.Map(lo.Keys(wanted), func(p string, _ int) string { return filepath.Dir(p) }))

	watching := 0
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Printf("[config] cannot watch %s: %v", dir, err)
			continue
		}
		watching++
	}
	if watching == 0 {
		if closeErr := watcher.Close(); closeErr != nil {
			log.Printf("[config] failed to close watcher: %v", closeErr)
		}
		return fmt.Errorf("none of the %d watched directories exist", len(dirs))
	}

	go watchLoop(ctx, watcher, wanted, debounce, onChange)
	return nil
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, wanted map[string]bool, debounce time.Duration, onChange func()) {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := watcher.Close(); err != nil {
			log.Printf("[config] failed to close watcher: %v", err)
		}
	}()

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !wanted[filepath.Clean(event.Name)] || event.Op&relevant == 0 {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if ctx.Err() == nil {
					onChange()
				}
			})
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watcher error: %v", err)
		}
	}
}
