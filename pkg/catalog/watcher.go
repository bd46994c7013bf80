package catalog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch reloads the catalog file at path into store whenever it changes, until ctx
// is cancelled. A file that fails to parse is logged and the previous snapshot stays
// active. The parent directory is watched so atomic renames by editors are seen.
func Watch(ctx context.Context, path string, store *Store, log *logrus.Logger) error {
	if log == nil {
		log = logrus.New()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}

	log.Infof("Watching catalog file %s", abs)
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
			c, err := LoadFile(abs)
			if err != nil {
				log.Warnf("Keeping previous catalog, reload of %s failed: %v", abs, err)
				continue
			}
			store.Replace(c)
			log.WithFields(logrus.Fields{
				"terminals":     len(c.terminals),
				"subscriptions": len(c.subscriptions),
				"services":      len(c.services),
			}).Info("Catalog reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Catalog watcher error: %v", err)
		}
	}
}
