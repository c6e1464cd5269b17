// Package inbox scores answer sheets dropped into a directory.
package inbox

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"omr-grader/internal/sheet"

	"github.com/fsnotify/fsnotify"
)

// Handler processes one new sheet file.
type Handler func(path string)

// Watcher delivers newly created sheet images to a Handler once their size
// has stopped changing.
type Watcher struct {
	Dir    string
	Settle time.Duration // quiet period before a file counts as complete
	Tick   time.Duration
}

// NewWatcher returns a Watcher with the default debounce timing.
func NewWatcher(dir string) *Watcher {
	return &Watcher{Dir: dir, Settle: 300 * time.Millisecond, Tick: 250 * time.Millisecond}
}

// Accept reports whether a file name is a sheet the inbox should score.
func Accept(name string) bool {
	base := filepath.Base(name)
	if base == "" || base[0] == '.' {
		return false
	}
	return sheet.IsSupportedFormat(base)
}

// Existing returns the sheet files already present in dir, sorted by name.
func Existing(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && Accept(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Run watches Dir until ctx is cancelled. Handlers run sequentially on the
// watcher goroutine.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return err
	}
	log.Printf("inbox: watching %s", w.Dir)

	pending := map[string]time.Time{}
	ticker := time.NewTicker(w.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && Accept(ev.Name) {
				pending[ev.Name] = time.Now()
			}
		case <-ticker.C:
			now := time.Now()
			var ready []string
			for name, t := range pending {
				if now.Sub(t) > w.Settle {
					ready = append(ready, name)
					delete(pending, name)
				}
			}
			sort.Strings(ready)
			for _, name := range ready {
				handle(name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("inbox: watch error: %v", err)
		}
	}
}
