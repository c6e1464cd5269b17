package config

import (
	"log"
	"os"
	"time"
)

// ParamsReloader watches a thresholds file and hands every valid new
// version to a callback, so thresholds can be tuned on a running server.
// An invalid edit is logged and the previous Params stay in effect.
type ParamsReloader struct {
	path          string
	modTime       time.Time
	checkInterval time.Duration
	stopCh        chan struct{}
	onChange      func(Params)
}

// NewParamsReloader creates a reloader for path. Returns nil if the file
// cannot be stat'ed.
func NewParamsReloader(path string, checkInterval time.Duration) *ParamsReloader {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return &ParamsReloader{
		path:          path,
		modTime:       info.ModTime(),
		checkInterval: checkInterval,
		stopCh:        make(chan struct{}),
	}
}

// OnChange sets the callback invoked from the watcher goroutine.
func (r *ParamsReloader) OnChange(callback func(Params)) {
	r.onChange = callback
}

// Start begins polling in a background goroutine.
func (r *ParamsReloader) Start() {
	r.stopCh = make(chan struct{})
	go r.watchLoop()
}

// Stop stops the watcher goroutine.
func (r *ParamsReloader) Stop() {
	close(r.stopCh)
}

func (r *ParamsReloader) watchLoop() {
	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Check()
		}
	}
}

// Check reloads the file if it changed since the last successful check and
// reports whether a new Params was delivered.
func (r *ParamsReloader) Check() bool {
	info, err := os.Stat(r.path)
	if err != nil || !info.ModTime().After(r.modTime) {
		return false
	}
	r.modTime = info.ModTime()

	p, err := LoadParams(r.path)
	if err != nil {
		log.Printf("params reload: %v (keeping previous thresholds)", err)
		return false
	}
	log.Printf("params reload: %s applied", r.path)
	if r.onChange != nil {
		r.onChange(p)
	}
	return true
}
