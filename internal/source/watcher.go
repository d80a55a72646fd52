package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quy267/spring-drools-integration-sub002/internal/logger"
)

// Watcher observes a rule source directory and invokes a reload callback
// when .grl files change. Change bursts are debounced so one save does not
// trigger a reload storm.
type Watcher struct {
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher over the given directory.
func NewWatcher(dir string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{dir: dir, debounce: debounce, watcher: fw}, nil
}

// Watch blocks, invoking onReload after each debounced burst of rule file
// changes, until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context, onReload func(ctx context.Context) error) error {
	defer w.watcher.Close()
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.dir, err)
	}

	logger.WithContext(ctx).Infof("rule source watcher started on %v", w.dir)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			logger.WithContext(ctx).Infof("rule source watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(event.Name, ".grl") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := onReload(ctx); err != nil {
				logger.WithContext(ctx).Errorf("rule source reload failed : %v", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithContext(ctx).Errorf("rule source watcher error : %v", err)
		}
	}
}
