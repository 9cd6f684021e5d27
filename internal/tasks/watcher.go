package tasks

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors input directories for arriving images and reports a
// directory once it has gone quiet, so a sweep being copied in is
// stitched exactly once.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *slog.Logger

	// Settled receives a directory path after SettleDelay with no
	// further image events in it.
	Settled chan string

	// SettleDelay is how long a directory must stay quiet.
	SettleDelay time.Duration

	dirs map[string]time.Time
	done chan struct{}
}

// NewWatcher creates a watcher over the given directories.
func NewWatcher(paths []string, log *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range paths {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, err
		}
		log.Info("watching directory", "dir", dir)
	}
	return &Watcher{
		watcher:     fw,
		log:         log,
		Settled:     make(chan string, 16),
		SettleDelay: 3 * time.Second,
		dirs:        make(map[string]time.Time),
		done:        make(chan struct{}),
	}, nil
}

// Start begins monitoring. Settled directories are delivered on the
// Settled channel until Stop.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !isImageFile(event.Name) {
				continue
			}
			w.dirs[filepath.Dir(event.Name)] = time.Now()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("filesystem watcher error", "error", err)

		case now := <-tick.C:
			for dir, last := range w.dirs {
				if now.Sub(last) < w.SettleDelay {
					continue
				}
				delete(w.dirs, dir)
				select {
				case w.Settled <- dir:
				default:
					w.log.Warn("settle queue full, dropping directory", "dir", dir)
				}
			}

		case <-w.done:
			return
		}
	}
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp", ".gif", ".webp":
		return true
	case ".cr2", ".cr3", ".nef", ".arw", ".dng", ".raf", ".orf", ".rw2":
		return true
	default:
		return false
	}
}
