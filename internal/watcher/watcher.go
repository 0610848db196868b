// Package watcher reports event logs whose content changed, once they have
// stopped changing for a debounce interval.
package watcher

import (
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"textreplay/internal/inputlog"
)

// Event is a settled change to a log.
type Event struct {
	Path      string
	Hash      [32]byte
	Size      int64
	Timestamp time.Time
}

// entry is the state of one log file.
type entry struct {
	// touched is the time of the last write not yet reported; zero once the
	// file has settled.
	touched time.Time

	// hash is the content last reported, or found at Start.
	hash  [32]byte
	known bool
}

// Watcher watches log files and directories of logs.
type Watcher struct {
	fsw      *fsnotify.Watcher
	paths    []string
	debounce time.Duration

	// files are watched explicitly; any log inside dirs is watched too.
	files map[string]bool
	dirs  map[string]bool

	mu      sync.Mutex
	entries map[string]*entry

	events chan Event
	errs   chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// New returns a Watcher for paths. Nothing is watched until Start.
func New(paths []string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:      fsw,
		paths:    append([]string(nil), paths...),
		debounce: debounce,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		entries:  make(map[string]*entry),
		events:   make(chan Event, 100),
		errs:     make(chan error, 10),
		done:     make(chan struct{}),
	}, nil
}

// Events delivers settled changes. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors delivers watch and read errors. It is closed by Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// WatchedPaths returns the paths given to New.
func (w *Watcher) WatchedPaths() []string {
	return append([]string(nil), w.paths...)
}

// PendingFiles returns how many logs changed and have not settled yet.
func (w *Watcher) PendingFiles() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for _, e := range w.entries {
		if !e.touched.IsZero() {
			n++
		}
	}
	return n
}

// Start begins watching. Logs that already exist are hashed so that only
// later changes are reported.
func (w *Watcher) Start() error {
	watch := make(map[string]bool)

	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}

		if !info.IsDir() {
			// Saving often replaces the file, so its directory is watched.
			w.files[abs] = true
			watch[filepath.Dir(abs)] = true
			w.baseline(abs)
			continue
		}

		w.dirs[abs] = true
		watch[abs] = true
		entries, err := os.ReadDir(abs)
		if err != nil {
			return err
		}
		for _, de := range entries {
			if !de.IsDir() && isLog(de.Name()) {
				w.baseline(filepath.Join(abs, de.Name()))
			}
		}
	}

	for dir := range watch {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop ends watching and closes the Events and Errors channels.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errs)
	return w.fsw.Close()
}

func isLog(name string) bool {
	_, err := inputlog.DetectFormat(name)
	return err == nil
}

func (w *Watcher) watches(path string) bool {
	return w.files[path] || (w.dirs[filepath.Dir(path)] && isLog(path))
}

func (w *Watcher) baseline(path string) {
	hash, _, err := HashFile(path)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.entries[path] = &entry{hash: hash, known: true}
	w.mu.Unlock()
}

func (w *Watcher) touch(path string, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[path]
	if !ok {
		e = &entry{}
		w.entries[path] = e
	}
	e.touched = now
}

func (w *Watcher) fail(err error) {
	select {
	case w.errs <- err:
	default:
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(min(max(w.debounce/2, 10*time.Millisecond), time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path, err := filepath.Abs(ev.Name)
			if err != nil || !w.watches(path) {
				continue
			}
			if info, err := os.Stat(path); err != nil || info.IsDir() {
				continue
			}
			w.touch(path, time.Now())

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.fail(err)

		case now := <-ticker.C:
			w.settle(now)
		}
	}
}

// settle reports every log untouched for the debounce interval whose content
// differs from what was last reported. Files are hashed without the lock
// held; a file written again meanwhile waits for the next round.
func (w *Watcher) settle(now time.Time) {
	cutoff := now.Add(-w.debounce)

	due := make(map[string]time.Time)
	w.mu.Lock()
	for path, e := range w.entries {
		if !e.touched.IsZero() && !e.touched.After(cutoff) {
			due[path] = e.touched
		}
	}
	w.mu.Unlock()

	for path, touched := range due {
		hash, size, err := HashFile(path)

		w.mu.Lock()
		e := w.entries[path]
		switch {
		case !e.touched.Equal(touched):
		case err != nil:
			e.touched = time.Time{}
			w.fail(err)
		case e.known && e.hash == hash:
			e.touched = time.Time{}
		default:
			select {
			case w.events <- Event{Path: path, Hash: hash, Size: size, Timestamp: now}:
				e.touched = time.Time{}
				e.hash, e.known = hash, true
			default:
			}
		}
		w.mu.Unlock()
	}
}

// HashFile returns the SHA-256 of a file's content and its size.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var sum [32]byte
	h.Sum(sum[:0])
	return sum, n, nil
}
