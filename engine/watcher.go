package engine

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the bursts of writes editors emit on save.
const debounceDelay = 100 * time.Millisecond

var watchedExts = map[string]bool{
	".yaml": true, ".yml": true,
	".glsl": true, ".frag": true, ".vert": true, ".comp": true,
	".fs": true, ".vs": true, ".cs": true,
}

// Watcher reports, at most one pending at a time, that something under the
// project directory changed. The tick thread drains C when it is ready to
// reload; intermediate changes collapse into the latest notification.
type Watcher struct {
	C <-chan struct{}

	fsw  *fsnotify.Watcher
	out  chan struct{}
	done chan struct{}
	log  *slog.Logger
}

// NewWatcher watches dir and every directory below it.
func NewWatcher(dir string, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:  fsw,
		out:  make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log,
	}
	w.C = w.out

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) {
				// New subdirectories need their own watch.
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					if !strings.HasPrefix(filepath.Base(ev.Name), ".") {
						w.fsw.Add(ev.Name)
					}
					continue
				}
			}
			if !watchedExts[strings.ToLower(filepath.Ext(ev.Name))] {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceDelay)
			} else {
				debounce.Reset(debounceDelay)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			select {
			case w.out <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "err", err)

		case <-w.done:
			return
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
