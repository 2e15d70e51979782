package credentials

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bankwatch/bankwatch/internal/errors"
	"github.com/bankwatch/bankwatch/internal/models"
	"github.com/fsnotify/fsnotify"
)

// Wait blocks until a complete credential appears in the store, typically
// written by the external authorization callback listener. It watches the
// parent directory for writes and also polls on a short interval, since the
// writer may replace the file via rename or still be mid-write when an
// event fires.
func (s *Store) Wait(ctx context.Context, timeout, poll time.Duration) (*models.Credential, error) {
	if cred, _ := s.Load(); cred != nil && cred.Complete() {
		return cred, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var watchCh chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		dir := filepath.Dir(s.path)
		if dir == "" {
			dir = "."
		}
		if err := watcher.Add(dir); err == nil {
			watchCh = make(chan fsnotify.Event, 1)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case event, ok := <-watcher.Events:
						if !ok {
							return
						}
						if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
							select {
							case watchCh <- event:
							default:
							}
						}
					case <-watcher.Errors:
						// Ignore watcher errors; the poll ticker still covers updates.
					}
				}
			}()
		}
		defer watcher.Close()
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, &errors.ErrAuthRequired{Reason: "timed out waiting for authorization callback", Err: ctx.Err()}
		case <-watchCh:
		case <-ticker.C:
		}

		if cred, _ := s.Load(); cred != nil && cred.Complete() {
			s.logger.Info("credential became available", "path", s.path)
			return cred, nil
		}
	}
}
