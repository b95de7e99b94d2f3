package auth

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch begins watching the token file for external rotation. A change
// invalidates the cached credentials so the next Token call re-reads the
// file. The watch covers the parent directory because login tooling
// replaces the file by rename.
func (s *Source) Watch(ctx context.Context) error {
	s.watchMu.Lock()
	if s.watcher != nil {
		s.watchMu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.watchMu.Unlock()
		return err
	}
	dir := filepath.Dir(s.opts.TokenPath)
	if err := watcher.Add(dir); err != nil {
		s.watchMu.Unlock()
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	watchCtx, cancel := context.WithCancel(ctx)
	s.watcher = watcher
	s.watchCancel = cancel
	s.watchMu.Unlock()

	s.watchWg.Add(1)
	go s.watchLoop(watchCtx, watcher)
	return nil
}

// Close stops the file watcher if one is running.
func (s *Source) Close() error {
	s.watchMu.Lock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	watcher := s.watcher
	s.watcher = nil
	s.watchMu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	s.watchWg.Wait()
	return nil
}

func (s *Source) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.watchWg.Done()
	target := filepath.Clean(s.opts.TokenPath)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.opts.Logger.Debug(ctx, "token file changed", "op", event.Op.String())
			s.Invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.opts.Logger.Warn(ctx, "token file watch error", "error", err)
		}
	}
}
