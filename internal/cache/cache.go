// Package cache loads and transforms images off the interaction thread and
// keeps a bounded set of display-ready results.
//
// Entries are keyed by sequence index and transform signature, so changing
// zoom, rotation, fullscreen or padding never serves an image rendered with
// the old settings. At most one load runs per key. When a load finishes the
// cache checks, on the interaction thread, whether its index is still the one
// being viewed with the same settings and only then asks the display to draw
// it; otherwise the result is kept for later.
package cache

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	serr "slideview/internal/errors"
	"slideview/internal/log"
	"slideview/internal/transform"
	"slideview/pkg/types"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/semaphore"
)

// Default pool and cache sizes
const (
	DefaultWorkers    = 3
	capacityPerWorker = 4
)

// Loader produces a display-ready image for ref rendered with p
type Loader interface {
	Load(ctx context.Context, ref types.ImageRef, p transform.Params) (image.Image, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context, ref types.ImageRef, p transform.Params) (image.Image, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context, ref types.ImageRef, p transform.Params) (image.Image, error) {
	return f(ctx, ref, p)
}

// Display is the view the cache reports to. ShowImage and CurrentIndex are
// only called through the Dispatcher. Params is also read by Request,
// Prefetch and Contains on the caller's goroutine.
type Display interface {
	ShowImage(index int, img image.Image)
	CurrentIndex() int
	Params() transform.Params
}

// Dispatcher runs fn on the interaction thread
type Dispatcher func(fn func())

// Key identifies one cache entry
type Key struct {
	Index     int
	Signature transform.Signature
}

// Stats are running counters, mostly useful to tests and the status line
type Stats struct {
	Hits       int
	Misses     int
	Duplicates int
	Scheduled  int
	Loads      int
	Failures   int
	Cancelled  int
	Evictions  int
	Stale      int
	Entries    int
	InFlight   int
}

// Option configures a Cache
type Option func(*Cache)

// WithWorkers bounds how many loads run at once
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithCapacity bounds how many ready images are kept
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithDispatcher sets how callbacks reach the interaction thread.
// Without one, callbacks run on the goroutine that produced them.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Cache) {
		if d != nil {
			c.dispatch = d
		}
	}
}

// WithLogger sets the logger used for load failures and debug output
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLoadTimeout gives up on a single load after d; zero means no limit
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

type task struct {
	key     Key
	ref     types.ImageRef
	params  transform.Params
	gen     uint64
	session string
	ctx     context.Context
	cancel  context.CancelFunc

	// Set under Cache.mu. A superseded task stays registered until it has
	// returned; requeue asks finish to start a fresh load for the key.
	superseded bool
	requeue    bool
}

// Cache is the asynchronous image cache
type Cache struct {
	loader   Loader
	display  Display
	dispatch Dispatcher
	logger   *log.Logger

	workers  int
	capacity int
	timeout  time.Duration
	sem      *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	refs       []types.ImageRef
	entries    *simplelru.LRU[Key, image.Image]
	inflight   map[Key]*task
	generation uint64
	session    string
	closed     bool
	stats      Stats
}

// New creates a cache over refs. Loads are performed by loader and results
// are reported to display.
func New(refs []types.ImageRef, loader Loader, display Display, opts ...Option) (*Cache, error) {
	if loader == nil || display == nil {
		return nil, serr.NewImageError("cache needs a loader and a display", -1, "", serr.InvalidArgument, nil)
	}

	c := &Cache{
		loader:   loader,
		display:  display,
		dispatch: func(fn func()) { fn() },
		logger:   log.Default(),
		workers:  DefaultWorkers,
		inflight: make(map[Key]*task),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.capacity == 0 {
		c.capacity = c.workers * capacityPerWorker
	}
	if c.capacity < c.workers {
		c.capacity = c.workers
	}

	entries, err := c.newEntries()
	if err != nil {
		return nil, err
	}
	c.entries = entries
	c.refs = copyRefs(refs)
	c.sem = semaphore.NewWeighted(int64(c.workers))
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.logger = c.logger.With(log.F("component", "cache"))
	return c, nil
}

func (c *Cache) newEntries() (*simplelru.LRU[Key, image.Image], error) {
	lru, err := simplelru.NewLRU[Key, image.Image](c.capacity, func(key Key, _ image.Image) {
		// Called with c.mu held
		c.stats.Evictions++
	})
	if err != nil {
		return nil, serr.Wrap(err, "failed to create image cache")
	}
	return lru, nil
}

// Workers returns the size of the worker pool
func (c *Cache) Workers() int { return c.workers }

// Capacity returns the maximum number of ready images kept
func (c *Cache) Capacity() int { return c.capacity }

// Request asks for the image at index rendered with the display's current
// settings. A cached image is handed to the display right away; otherwise a
// background load is started unless one is already running for the same key.
// Request never waits for I/O.
func (c *Cache) Request(index int) error {
	return c.request(index, c.display.Params(), true)
}

// Prefetch loads the neighbours of center, up to radius steps either way
// with wrap-around. Prefetched images are cached without being shown unless
// the viewer has moved onto them by the time they finish.
func (c *Cache) Prefetch(center, radius int) error {
	n := c.size()
	if n == 0 {
		return nil
	}
	if center < 0 || center >= n {
		return outOfRange(center)
	}
	if radius <= 0 {
		return nil
	}

	params := c.display.Params()
	seen := map[int]bool{center: true}
	for d := 1; d <= radius; d++ {
		for _, i := range []int{wrap(center+d, n), wrap(center-d, n)} {
			if seen[i] {
				continue
			}
			seen[i] = true
			if err := c.request(i, params, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Cache) request(index int, params transform.Params, show bool) error {
	key := Key{Index: index, Signature: params.Signature()}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return serr.ErrCacheClosed
	}
	if index < 0 || index >= len(c.refs) {
		c.mu.Unlock()
		return outOfRange(index)
	}

	if img, ok := c.entries.Get(key); ok {
		c.stats.Hits++
		gen := c.generation
		c.mu.Unlock()
		if show {
			// The viewer may have moved on before the callback runs
			c.dispatch(func() { c.complete(gen, key, img) })
		}
		return nil
	}
	c.stats.Misses++

	if t, ok := c.inflight[key]; ok {
		if t.superseded {
			// Never two loads for one key; restart once the old one returns
			t.requeue = true
		} else {
			c.stats.Duplicates++
		}
		c.mu.Unlock()
		return nil
	}

	t := c.startLocked(key, c.refs[index], params)
	c.mu.Unlock()

	go c.run(t)
	return nil
}

// startLocked registers a new task for key. The caller starts it after
// releasing c.mu.
func (c *Cache) startLocked(key Key, ref types.ImageRef, params transform.Params) *task {
	ctx, cancel := context.WithCancel(c.ctx)
	t := &task{
		key:     key,
		ref:     ref,
		params:  params,
		gen:     c.generation,
		session: c.session,
		ctx:     ctx,
		cancel:  cancel,
	}
	c.inflight[key] = t
	c.stats.Scheduled++
	c.wg.Add(1)

	c.logger.With(
		log.F("session", t.session),
		log.F("index", ref.Index),
		log.F("signature", key.Signature.String()),
	).Debug("Scheduling image load")
	return t
}

func (c *Cache) run(t *task) {
	defer c.wg.Done()
	defer t.cancel()

	var (
		img image.Image
		err error
	)
	if err = c.sem.Acquire(t.ctx, 1); err != nil {
		err = serr.NewImageError("load cancelled before start", t.ref.Index, t.ref.Path, serr.Cancelled, err)
	} else {
		img, err = c.load(t)
		c.sem.Release(1)
	}
	c.finish(t, img, err)
}

// load calls the loader with panics turned into errors
func (c *Cache) load(t *task) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = serr.NewImageError(fmt.Sprintf("loader panicked: %v", r), t.ref.Index, t.ref.Path, serr.DecodeFailed, nil)
		}
	}()

	if err := t.ctx.Err(); err != nil {
		return nil, serr.NewImageError("load superseded", t.ref.Index, t.ref.Path, serr.Cancelled, err)
	}

	ctx := t.ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	img, err = c.loader.Load(ctx, t.ref, t.params)
	if err == nil && img == nil {
		err = serr.NewImageError("loader returned no image", t.ref.Index, t.ref.Path, serr.DecodeFailed, nil)
	}
	if err != nil && serr.Is(ctx.Err(), context.DeadlineExceeded) && t.ctx.Err() == nil {
		err = serr.NewImageError(fmt.Sprintf("load timed out after %s", c.timeout), t.ref.Index, t.ref.Path, serr.Unknown, err)
	}
	if err == nil && t.ctx.Err() != nil {
		return nil, serr.NewImageError("load superseded", t.ref.Index, t.ref.Path, serr.Cancelled, t.ctx.Err())
	}
	return img, err
}

func (c *Cache) finish(t *task, img image.Image, err error) {
	c.mu.Lock()
	if c.inflight[t.key] == t {
		delete(c.inflight, t.key)
	}
	current := t.gen == c.generation && !c.closed
	superseded := t.ctx.Err() != nil && serr.IsCancelled(err)
	var next *task
	if t.requeue && current && (err != nil || superseded) {
		next = c.startLocked(t.key, t.ref, t.params)
	}
	switch {
	case superseded:
		c.stats.Cancelled++
	case err != nil:
		c.stats.Failures++
	case !current:
		c.stats.Cancelled++
	default:
		c.entries.Add(t.key, img)
		c.stats.Loads++
	}
	c.mu.Unlock()

	if next != nil {
		go c.run(next)
	}

	logger := c.logger.With(log.F("session", t.session), log.F("index", t.ref.Index), log.F("file", t.ref.Name()))
	switch {
	case superseded || (err == nil && !current):
		logger.Debug("Image load dropped")
		return
	case err != nil:
		// The key stays absent so the next request retries
		logger.WithError(err).Warn("Image load failed")
		return
	}

	logger.Debug("Image ready")
	gen := t.gen
	c.dispatch(func() { c.complete(gen, t.key, img) })
}

// complete runs on the interaction thread
func (c *Cache) complete(gen uint64, key Key, img image.Image) {
	c.mu.Lock()
	valid := gen == c.generation && !c.closed
	c.mu.Unlock()
	if !valid {
		return
	}

	if c.display.CurrentIndex() != key.Index || c.display.Params().Signature() != key.Signature {
		c.mu.Lock()
		c.stats.Stale++
		c.mu.Unlock()
		return
	}
	c.display.ShowImage(key.Index, img)
}

// Supersede cancels in-flight loads whose key keep rejects and returns how
// many were cancelled. Loads still waiting for a worker never start; running
// loads are abandoned at their next checkpoint. A cancelled load keeps its
// key until it has returned, so requesting the key again in the meantime
// does not start a second load.
func (c *Cache) Supersede(keep func(key Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, t := range c.inflight {
		if t.superseded && !t.requeue {
			continue
		}
		if keep != nil && keep(key) {
			continue
		}
		t.superseded = true
		t.requeue = false
		t.cancel()
		n++
	}
	return n
}

// Invalidate drops every ready image and abandons every in-flight load
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

// Reset switches to a new sequence identified by session; everything cached
// for the old one is dropped
func (c *Cache) Reset(session string, refs []types.ImageRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs = copyRefs(refs)
	c.session = session
	c.invalidateLocked()
	c.logger.With(log.F("session", session), log.F("images", len(refs))).Debug("Image cache reset")
}

// Session returns the id of the sequence the cache serves
func (c *Cache) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Cache) invalidateLocked() {
	for key, t := range c.inflight {
		t.cancel()
		delete(c.inflight, key)
	}
	c.generation++
	// A fresh LRU keeps Purge from counting as evictions
	if entries, err := c.newEntries(); err == nil {
		c.entries = entries
	} else {
		c.entries.Purge()
	}
}

// Contains reports whether index is cached for the display's current settings
func (c *Cache) Contains(index int) bool {
	key := Key{Index: index, Signature: c.display.Params().Signature()}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(key)
}

// Len returns the number of ready images
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// InFlight returns the number of loads scheduled and not yet finished,
// leaving out superseded loads nobody is waiting for
func (c *Cache) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *Cache) activeLocked() int {
	n := 0
	for _, t := range c.inflight {
		if !t.superseded || t.requeue {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.entries.Len()
	s.InFlight = c.activeLocked()
	return s
}

// Wait blocks until every started load goroutine has returned
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close cancels all loads, waits for the workers and rejects further requests
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for key := range c.inflight {
		delete(c.inflight, key)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.logger.Debug("Image cache closed")
}

func (c *Cache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.refs)
}

func outOfRange(index int) error {
	return serr.NewImageError("index out of range", index, "", serr.InvalidArgument, serr.ErrIndexOutOfRange)
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func copyRefs(refs []types.ImageRef) []types.ImageRef {
	out := make([]types.ImageRef, len(refs))
	copy(out, refs)
	return out
}
