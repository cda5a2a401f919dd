package watch

import (
	"sync"
	"time"

	"slideview/internal/log"
)

// DefaultQuiet is how long a folder must stay unchanged before a reload
const DefaultQuiet = 300 * time.Millisecond

// Follow calls onChange once a burst of changes has settled for quiet.
// A copy of many files therefore triggers a single reload. The returned
// function stops following; it does not stop the watcher.
func Follow(w *Watcher, quiet time.Duration, onChange func()) (stop func()) {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	done := make(chan struct{})
	var once sync.Once

	go func() {
		var (
			timer   *time.Timer
			fire    <-chan time.Time
			pending int
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case change, ok := <-w.Changes():
				if !ok {
					return
				}
				pending++
				log.LogWithFields(log.F("file", change.Path), log.F("op", change.Op.String())).Debug("Folder changed")
				if timer == nil {
					timer = time.NewTimer(quiet)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(quiet)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				log.LogWithFields(log.F("changes", pending)).Info("Reloading folder")
				pending = 0
				onChange()

			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}
