// Package sequence holds the ordered list of images being shown and the
// current position in it.
package sequence

import (
	"math/rand"
	"sync"

	serr "slideview/internal/errors"
	"slideview/pkg/types"

	"github.com/google/uuid"
)

// Sequence is an ordered set of image refs with a current index.
// Refs are renumbered whenever the order changes so that ref.Index always
// equals its position.
type Sequence struct {
	mu      sync.RWMutex
	id      string
	refs    []types.ImageRef
	current int
}

// New creates a sequence positioned on the first image
func New(refs []types.ImageRef) *Sequence {
	s := &Sequence{}
	s.Replace(refs)
	return s
}

// Replace swaps in a new list of refs, resets the position and starts a new session
func (s *Sequence) Replace(refs []types.ImageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = renumber(refs)
	s.current = 0
	s.id = uuid.NewString()
}

// ID identifies the current session; it changes whenever the list is replaced or reordered
func (s *Sequence) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Len returns the number of images
func (s *Sequence) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs)
}

// Empty reports whether the sequence holds no images
func (s *Sequence) Empty() bool {
	return s.Len() == 0
}

// Refs returns a copy of the ordered refs
func (s *Sequence) Refs() []types.ImageRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ImageRef, len(s.refs))
	copy(out, s.refs)
	return out
}

// At returns the ref at index i
func (s *Sequence) At(i int) (types.ImageRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.refs) {
		return types.ImageRef{}, serr.NewImageError("index out of range", i, "", serr.InvalidArgument, serr.ErrIndexOutOfRange)
	}
	return s.refs[i], nil
}

// Index returns the current position, or -1 for an empty sequence
func (s *Sequence) Index() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.refs) == 0 {
		return -1
	}
	return s.current
}

// Current returns the ref at the current position
func (s *Sequence) Current() (types.ImageRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.refs) == 0 {
		return types.ImageRef{}, false
	}
	return s.refs[s.current], true
}

// SetCurrent moves to index i
func (s *Sequence) SetCurrent(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.refs) {
		return serr.NewImageError("index out of range", i, "", serr.InvalidArgument, serr.ErrIndexOutOfRange)
	}
	s.current = i
	return nil
}

// Next advances by one, wrapping to the first image, and returns the new index
func (s *Sequence) Next() int {
	return s.step(1)
}

// Previous steps back by one, wrapping to the last image, and returns the new index
func (s *Sequence) Previous() int {
	return s.step(-1)
}

// Wrap maps any integer onto [0, Len)
func (s *Sequence) Wrap(i int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return wrap(i, len(s.refs))
}

func (s *Sequence) step(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.refs) == 0 {
		return -1
	}
	s.current = wrap(s.current+delta, len(s.refs))
	return s.current
}

// Shuffle randomizes the order. The image being shown stays current and moves
// to the front so a full cycle visits every other image before it returns.
func (s *Sequence) Shuffle(r *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.refs) < 2 {
		return
	}

	shown := s.refs[s.current]
	rest := make([]types.ImageRef, 0, len(s.refs)-1)
	for i, ref := range s.refs {
		if i != s.current {
			rest = append(rest, ref)
		}
	}

	shuffle := rand.Shuffle
	if r != nil {
		shuffle = r.Shuffle
	}
	shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	s.refs = renumber(append([]types.ImageRef{shown}, rest...))
	s.current = 0
	s.id = uuid.NewString()
}

// Progress returns how far through the sequence the current image is, as a
// percentage in (0, 100], and how many images remain after it.
func (s *Sequence) Progress() (percent float64, remaining int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.refs)
	if n == 0 {
		return 0, 0
	}
	return float64(s.current+1) / float64(n) * 100, n - s.current - 1
}

func wrap(i, n int) int {
	if n == 0 {
		return -1
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func renumber(refs []types.ImageRef) []types.ImageRef {
	out := make([]types.ImageRef, len(refs))
	for i, ref := range refs {
		out[i] = types.ImageRef{Index: i, Path: ref.Path}
	}
	return out
}
