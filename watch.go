package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses editor save bursts into one rebuild.
const watchDebounce = 200 * time.Millisecond

// watchAndBuild rebuilds srcPath with build on every change until the
// process is interrupted. The parent directory is watched rather than the
// file itself: editors that write via rename replace the inode and would
// silently detach a file watch.
func watchAndBuild(srcPath string, build func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(srcPath)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	report := func() {
		if err := build(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Printf("built %s\n", srcPath)
		}
	}
	report()

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(srcPath) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			report()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", err)
		}
	}
}
