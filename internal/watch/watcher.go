package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"slideview/internal/log"

	"github.com/fsnotify/fsnotify"
)

// Change is a file event in a watched folder that may alter the image list
type Change struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Option configures a Watcher
type Option func(*Watcher)

// WithFilter only reports files whose name satisfies match
func WithFilter(match func(name string) bool) Option {
	return func(w *Watcher) {
		if match != nil {
			w.match = match
		}
	}
}

// WithBuffer sets the capacity of the change channel
func WithBuffer(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.buffer = n
		}
	}
}

// Watcher monitors image folders for added, changed, removed or renamed files
type Watcher struct {
	// Directories being watched
	directories []string

	// Channel to deliver changes
	changes chan Change
	buffer  int

	// Channel to signal stop, closed by Stop
	stopChan chan struct{}
	// Closed when the event loop has exited
	done chan struct{}

	fsWatcher *fsnotify.Watcher
	match     func(name string) bool

	mutex   sync.RWMutex
	running bool
}

// New creates a folder watcher
func New(opts ...Option) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		directories: []string{},
		buffer:      32,
		fsWatcher:   fsWatcher,
		match:       func(string) bool { return true },
	}
	for _, opt := range opts {
		opt(w)
	}
	w.changes = make(chan Change, w.buffer)
	return w, nil
}

// AddDirectory starts watching dir
func (w *Watcher) AddDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s to watcher: %w", dir, err)
	}

	w.mutex.Lock()
	found := false
	for _, existing := range w.directories {
		if existing == dir {
			found = true
			break
		}
	}
	if !found {
		w.directories = append(w.directories, dir)
	}
	w.mutex.Unlock()

	log.LogWithFields(log.F("directory", dir)).Info("Watching directory")
	return nil
}

// RemoveDirectory stops watching dir
func (w *Watcher) RemoveDirectory(dir string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	for i, existing := range w.directories {
		if existing == dir {
			w.directories = append(w.directories[:i], w.directories[i+1:]...)
			if err := w.fsWatcher.Remove(dir); err != nil {
				return fmt.Errorf("failed to remove directory %s from watcher: %w", dir, err)
			}
			return nil
		}
	}
	return nil
}

// Watch replaces every watched directory with dir
func (w *Watcher) Watch(dir string) error {
	for _, existing := range w.GetDirectories() {
		if existing == dir {
			return nil
		}
		if err := w.RemoveDirectory(existing); err != nil {
			log.LogWithFields(log.F("directory", existing), log.F("error", err)).Warn("Failed to stop watching directory")
		}
	}
	return w.AddDirectory(dir)
}

// Changes returns the channel that delivers changes. It is closed once the
// watcher has stopped.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start begins processing file system events
func (w *Watcher) Start() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if w.done != nil {
		return fmt.Errorf("watcher cannot be restarted")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})

	go w.loop(w.stopChan, w.done)

	log.Debug("Watcher started")
	return nil
}

func (w *Watcher) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(w.changes)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
				!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if !w.match(filepath.Base(event.Name)) {
				continue
			}
			// Folders named like images are not images
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				continue
			}

			change := Change{Path: event.Name, Op: event.Op, Timestamp: time.Now()}
			select {
			case w.changes <- change:
			default:
				log.LogWithFields(log.F("file", event.Name)).Warn("Change channel is full, dropped event")
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.LogWithFields(log.F("error", err)).Error("fsnotify watcher error")

		case <-stop:
			return
		}
	}
}

// Stop halts the watcher and waits for its event loop to exit
func (w *Watcher) Stop() {
	w.mutex.Lock()
	if !w.running {
		w.mutex.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	if err := w.fsWatcher.Close(); err != nil {
		log.LogWithFields(log.F("error", err)).Error("Error closing fsnotify watcher")
	}
	done := w.done
	w.mutex.Unlock()

	<-done
	log.Debug("Watcher stopped")
}

// IsRunning returns whether the watcher is currently active
func (w *Watcher) IsRunning() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.running
}

// GetDirectories returns the list of directories being watched
func (w *Watcher) GetDirectories() []string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	dirsCopy := make([]string, len(w.directories))
	copy(dirsCopy, w.directories)
	return dirsCopy
}
