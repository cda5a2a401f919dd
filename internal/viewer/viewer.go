// Package viewer is the slideshow controller. It owns the image sequence,
// the transform settings and autoplay, and drives the image cache.
//
// Every exported method must be called on the interaction thread. The only
// goroutine the viewer starts is the autoplay ticker, which hands each tick
// back through the dispatcher.
package viewer

import (
	"image"
	"math/rand"
	"sync"
	"time"

	"slideview/internal/cache"
	"slideview/internal/config"
	serr "slideview/internal/errors"
	"slideview/internal/log"
	"slideview/internal/scan"
	"slideview/internal/sequence"
	"slideview/internal/transform"
	"slideview/pkg/types"
)

const defaultZoomStep = 1.2

// Status is everything the screen shows besides the image itself
type Status struct {
	Ref        types.ImageRef
	Total      int
	Percent    float64
	Remaining  int
	Loading    bool
	Playing    bool
	Shuffle    bool
	Fullscreen bool
	Zoom       float64
	Rotation   int
	IntervalMS int
	Cached     int
}

// Screen is the surface the viewer draws on
type Screen interface {
	ShowImage(ref types.ImageRef, img image.Image)
	SetStatus(s Status)
	SetFullscreen(on bool)
	ShowError(err error)
}

// Option configures a Viewer
type Option func(*Viewer)

// WithLoader replaces the file loader
func WithLoader(l cache.Loader) Option {
	return func(v *Viewer) { v.loader = l }
}

// WithDispatcher sets how background work reaches the interaction thread
func WithDispatcher(d cache.Dispatcher) Option {
	return func(v *Viewer) { v.dispatch = d }
}

// WithRand sets the random source used for shuffling
func WithRand(r *rand.Rand) Option {
	return func(v *Viewer) { v.rng = r }
}

// Viewer is the slideshow controller
type Viewer struct {
	cfg      *config.Config
	screen   Screen
	dispatch cache.Dispatcher
	loader   cache.Loader
	rng      *rand.Rand
	scanner  *scan.Scanner
	cache    *cache.Cache
	seq      *sequence.Sequence
	logger   *log.Logger

	dir     string
	ordered []types.ImageRef // folder order, restored when shuffle is turned off

	mu       sync.RWMutex
	params   transform.Params
	shuffle  bool
	interval time.Duration

	playing bool
	stop    chan struct{}
}

// New creates a viewer drawing on screen
func New(cfg *config.Config, screen Screen, opts ...Option) (*Viewer, error) {
	if cfg == nil {
		cfg = config.New()
	}
	v := &Viewer{
		cfg:      cfg,
		screen:   screen,
		dispatch: func(fn func()) { fn() },
		loader:   transform.NewFileLoader(),
		seq:      sequence.New(nil),
		shuffle:  cfg.Slideshow.Shuffle,
		interval: time.Duration(clampInterval(cfg.Slideshow.IntervalMS)) * time.Millisecond,
		logger:   log.LogWithFields(log.F("component", "viewer")),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.rng == nil {
		v.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	v.params = transform.DefaultParams(cfg.Display.Width, cfg.Display.Height)
	v.params.Fullscreen = cfg.Display.Fullscreen
	v.params.AutoOrient = cfg.Display.AutoOrient
	v.params.Padding = clampPadding(transform.Padding{
		Top:    cfg.Display.Padding.Top,
		Bottom: cfg.Display.Padding.Bottom,
		Left:   cfg.Display.Padding.Left,
		Right:  cfg.Display.Padding.Right,
	})

	scanner, err := scan.New(scan.WithExtensions(cfg.Formats.Extensions), scan.WithSniff(cfg.Formats.Sniff))
	if err != nil {
		return nil, err
	}
	v.scanner = scanner

	c, err := cache.New(nil, v.loader, v,
		cache.WithWorkers(cfg.Cache.Workers),
		cache.WithCapacity(cfg.Cache.Capacity),
		cache.WithDispatcher(v.dispatch),
		cache.WithLoadTimeout(time.Duration(cfg.Cache.LoadTimeoutMS)*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	v.cache = c
	return v, nil
}

// ShowImage is called by the cache when the current image is ready
func (v *Viewer) ShowImage(index int, img image.Image) {
	ref, err := v.seq.At(index)
	if err != nil {
		return
	}
	if v.screen != nil {
		v.screen.ShowImage(ref, img)
	}
	v.publish(false)
}

// CurrentIndex returns the index being viewed, -1 when nothing is open
func (v *Viewer) CurrentIndex() int {
	return v.seq.Index()
}

// Params returns a snapshot of the transform settings
func (v *Viewer) Params() transform.Params {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.params
}

// Dir returns the open folder
func (v *Viewer) Dir() string {
	return v.dir
}

// Len returns the number of images in the sequence
func (v *Viewer) Len() int {
	return v.seq.Len()
}

// Cache exposes the image cache, mainly for status and tests
func (v *Viewer) Cache() *cache.Cache {
	return v.cache
}

// Scanner returns the scanner used to list folders
func (v *Viewer) Scanner() *scan.Scanner {
	return v.scanner
}

// Open scans dir and shows its first image. On failure the current folder,
// if any, stays open and the error is reported on the screen.
func (v *Viewer) Open(dir string) error {
	refs, err := v.scanner.Folder(dir)
	if err != nil {
		v.logger.WithError(err).Warn("Cannot open folder")
		v.reportError(err)
		return err
	}

	v.dir = dir
	v.ordered = refs
	v.seq.Replace(refs)
	if v.isShuffled() {
		v.seq.Shuffle(v.rng)
	}
	v.cache.Reset(v.seq.ID(), v.seq.Refs())

	v.logger.With(log.F("session", v.seq.ID()), log.F("directory", dir), log.F("images", len(refs))).Info("Folder opened")
	v.showCurrent()

	if v.cfg.Slideshow.Autoplay && !v.playing {
		v.startAutoplay()
	}
	return nil
}

// Reload rescans the open folder, keeping the current image when it still exists
func (v *Viewer) Reload() error {
	if v.dir == "" {
		return nil
	}
	keep, hadCurrent := v.seq.Current()

	refs, err := v.scanner.Folder(v.dir)
	if err != nil {
		v.logger.WithError(err).Warn("Reload failed")
		if serr.IsNoImages(err) {
			v.ordered = nil
			v.seq.Replace(nil)
			v.cache.Reset(v.seq.ID(), nil)
			v.StopAutoplay()
			v.publish(false)
		}
		v.reportError(err)
		return err
	}

	v.ordered = refs
	v.seq.Replace(refs)
	if v.isShuffled() {
		v.seq.Shuffle(v.rng)
	}
	if hadCurrent {
		v.moveTo(keep.Path)
	}
	v.cache.Reset(v.seq.ID(), v.seq.Refs())

	v.logger.With(log.F("session", v.seq.ID()), log.F("directory", v.dir), log.F("images", len(refs))).Info("Folder reloaded")
	v.showCurrent()
	return nil
}

// Next shows the following image, wrapping to the first
func (v *Viewer) Next() {
	if v.seq.Empty() {
		return
	}
	v.seq.Next()
	v.showCurrent()
}

// Previous shows the preceding image, wrapping to the last
func (v *Viewer) Previous() {
	if v.seq.Empty() {
		return
	}
	v.seq.Previous()
	v.showCurrent()
}

// Goto shows the image at index
func (v *Viewer) Goto(index int) error {
	if err := v.seq.SetCurrent(index); err != nil {
		return err
	}
	v.showCurrent()
	return nil
}

// ZoomIn multiplies the zoom factor by the configured step
func (v *Viewer) ZoomIn() {
	v.updateParams(func(p *transform.Params) {
		p.Zoom = clampZoom(p.EffectiveZoom() * v.zoomStep())
	})
}

// ZoomOut divides the zoom factor by the configured step
func (v *Viewer) ZoomOut() {
	v.updateParams(func(p *transform.Params) {
		p.Zoom = clampZoom(p.EffectiveZoom() / v.zoomStep())
	})
}

// ResetZoom goes back to a zoom factor of 1
func (v *Viewer) ResetZoom() {
	v.updateParams(func(p *transform.Params) { p.Zoom = 1 })
}

// Rotate turns the image a further 90 degrees
func (v *Viewer) Rotate() {
	v.updateParams(func(p *transform.Params) {
		p.Rotation = (p.NormalizedRotation() + 90) % 360
	})
}

// ToggleFullscreen switches between the window and the full screen viewport
func (v *Viewer) ToggleFullscreen() {
	v.SetFullscreen(!v.Params().Fullscreen)
}

// SetFullscreen enters or leaves fullscreen
func (v *Viewer) SetFullscreen(on bool) {
	if v.Params().Fullscreen == on {
		return
	}
	v.updateParams(func(p *transform.Params) { p.Fullscreen = on })
	if v.screen != nil {
		v.screen.SetFullscreen(on)
	}
}

// SetViewport sets the windowed target size
func (v *Viewer) SetViewport(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	v.updateParams(func(p *transform.Params) { p.Width, p.Height = w, h })
}

// SetScreenSize sets the fullscreen target size
func (v *Viewer) SetScreenSize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	v.updateParams(func(p *transform.Params) { p.ScreenWidth, p.ScreenHeight = w, h })
}

// SetPadding sets the white border, each side clamped to [0, MaxPadding]
func (v *Viewer) SetPadding(pad transform.Padding) {
	v.updateParams(func(p *transform.Params) { p.Padding = clampPadding(pad) })
}

// ToggleShuffle turns shuffling on or off. The current image stays on screen.
func (v *Viewer) ToggleShuffle() {
	v.mu.Lock()
	v.shuffle = !v.shuffle
	on := v.shuffle
	v.mu.Unlock()

	if v.seq.Len() > 1 {
		current, _ := v.seq.Current()
		if on {
			v.seq.Shuffle(v.rng)
		} else {
			v.seq.Replace(v.ordered)
			v.moveTo(current.Path)
		}
		v.cache.Reset(v.seq.ID(), v.seq.Refs())
	}
	v.logger.With(log.F("session", v.seq.ID()), log.F("shuffle", on)).Debug("Shuffle toggled")
	v.showCurrent()
}

// SetInterval sets the autoplay interval in milliseconds, clamped to the
// allowed range, and returns the value applied.
func (v *Viewer) SetInterval(ms int) int {
	ms = clampInterval(ms)
	v.mu.Lock()
	v.interval = time.Duration(ms) * time.Millisecond
	v.mu.Unlock()

	if v.playing {
		v.stopTicker()
		v.startTicker()
	}
	v.publish(false)
	return ms
}

// Interval returns the autoplay interval
func (v *Viewer) Interval() time.Duration {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.interval
}

// Playing reports whether autoplay is running
func (v *Viewer) Playing() bool {
	return v.playing
}

// ToggleAutoplay starts or stops the slideshow
func (v *Viewer) ToggleAutoplay() {
	if v.playing {
		v.StopAutoplay()
		return
	}
	v.startAutoplay()
}

func (v *Viewer) startAutoplay() {
	if v.seq.Empty() {
		return
	}
	v.playing = true
	v.startTicker()
	v.publish(false)
}

// StopAutoplay stops the slideshow
func (v *Viewer) StopAutoplay() {
	if !v.playing {
		return
	}
	v.playing = false
	v.stopTicker()
	v.publish(false)
}

func (v *Viewer) startTicker() {
	stop := make(chan struct{})
	v.stop = stop
	ticker := time.NewTicker(v.Interval())
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				v.dispatch(func() {
					// A tick queued before Stop must not advance
					if v.stop == stop {
						v.Next()
					}
				})
			case <-stop:
				return
			}
		}
	}()
}

func (v *Viewer) stopTicker() {
	if v.stop != nil {
		close(v.stop)
		v.stop = nil
	}
}

// Status returns what the screen should show
func (v *Viewer) Status() Status {
	p := v.Params()
	ref, _ := v.seq.Current()
	percent, remaining := v.seq.Progress()
	return Status{
		Ref:        ref,
		Total:      v.seq.Len(),
		Percent:    percent,
		Remaining:  remaining,
		Playing:    v.playing,
		Shuffle:    v.isShuffled(),
		Fullscreen: p.Fullscreen,
		Zoom:       p.EffectiveZoom(),
		Rotation:   p.NormalizedRotation(),
		IntervalMS: int(v.Interval() / time.Millisecond),
		Cached:     v.cache.Len(),
	}
}

// Close stops autoplay and the background loads
func (v *Viewer) Close() {
	v.playing = false
	v.stopTicker()
	v.cache.Close()
}

func (v *Viewer) zoomStep() float64 {
	if v.cfg.Display.ZoomStep <= 1 {
		return defaultZoomStep
	}
	return v.cfg.Display.ZoomStep
}

func (v *Viewer) updateParams(mutate func(p *transform.Params)) {
	v.mu.Lock()
	mutate(&v.params)
	v.mu.Unlock()
	v.showCurrent()
}

// showCurrent requests the current image, warms its neighbours and drops
// loads that fell out of the window around it.
func (v *Viewer) showCurrent() {
	index := v.seq.Index()
	if index < 0 {
		v.publish(false)
		return
	}

	ready := v.cache.Contains(index)
	v.publish(!ready)

	if err := v.cache.Request(index); err != nil {
		v.logger.WithError(err).Error("Image request failed")
		return
	}

	radius := v.cfg.Cache.Prefetch
	n := v.seq.Len()
	sig := v.Params().Signature()
	keep := func(k cache.Key) bool {
		return k.Signature == sig && ringDistance(k.Index, index, n) <= radius
	}
	if dropped := v.cache.Supersede(keep); dropped > 0 {
		v.logger.With(log.F("dropped", dropped)).Debug("Superseded loads outside the window")
	}
	if err := v.cache.Prefetch(index, radius); err != nil {
		v.logger.WithError(err).Debug("Prefetch failed")
	}
}

func (v *Viewer) publish(loading bool) {
	if v.screen == nil {
		return
	}
	s := v.Status()
	s.Loading = loading
	v.screen.SetStatus(s)
}

func (v *Viewer) reportError(err error) {
	if v.screen != nil {
		v.screen.ShowError(err)
	}
}

func (v *Viewer) isShuffled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.shuffle
}

// moveTo makes the image at path current if it is in the sequence
func (v *Viewer) moveTo(path string) {
	for _, ref := range v.seq.Refs() {
		if ref.Path == path {
			_ = v.seq.SetCurrent(ref.Index)
			return
		}
	}
}

func ringDistance(a, b, n int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if n-d < d {
		return n - d
	}
	return d
}

func clampInterval(ms int) int {
	if ms < config.MinIntervalMS {
		return config.MinIntervalMS
	}
	if ms > config.MaxIntervalMS {
		return config.MaxIntervalMS
	}
	return ms
}

func clampZoom(z float64) float64 {
	if z < transform.MinZoom {
		return transform.MinZoom
	}
	if z > transform.MaxZoom {
		return transform.MaxZoom
	}
	return z
}

func clampPadding(p transform.Padding) transform.Padding {
	side := func(n int) int {
		if n < 0 {
			return 0
		}
		if n > config.MaxPadding {
			return config.MaxPadding
		}
		return n
	}
	return transform.Padding{Top: side(p.Top), Bottom: side(p.Bottom), Left: side(p.Left), Right: side(p.Right)}
}
