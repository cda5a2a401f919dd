package viewer

import (
	"context"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"slideview/internal/cache"
	"slideview/internal/config"
	serr "slideview/internal/errors"
	"slideview/internal/transform"
	"slideview/pkg/testutils"
	"slideview/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type drawn struct {
	ref  types.ImageRef
	size image.Point
}

type fakeScreen struct {
	mu         sync.Mutex
	drawn      []drawn
	statuses   []Status
	fullscreen []bool
	errors     []error
}

func (s *fakeScreen) ShowImage(ref types.ImageRef, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawn = append(s.drawn, drawn{ref: ref, size: img.Bounds().Size()})
}

func (s *fakeScreen) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, st)
}

func (s *fakeScreen) SetFullscreen(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullscreen = append(s.fullscreen, on)
}

func (s *fakeScreen) ShowError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, err)
}

func (s *fakeScreen) last() drawn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.drawn) == 0 {
		return drawn{}
	}
	return s.drawn[len(s.drawn)-1]
}

func (s *fakeScreen) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return Status{}
	}
	return s.statuses[len(s.statuses)-1]
}

// uiQueue runs dispatched callbacks when the test drains it
type uiQueue struct {
	ch chan func()
}

func (q *uiQueue) dispatch(fn func()) { q.ch <- fn }

func (q *uiQueue) drain() {
	for {
		select {
		case fn := <-q.ch:
			fn()
		default:
			return
		}
	}
}

type harness struct {
	v      *Viewer
	screen *fakeScreen
	ui     *uiQueue
	dir    string
}

func newHarness(t *testing.T, mutate func(cfg *config.Config), names ...string) *harness {
	t.Helper()
	return newHarnessWith(t, mutate, nil, names...)
}

func newHarnessWith(t *testing.T, mutate func(cfg *config.Config), opts []Option, names ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		testutils.WriteTestImage(t, dir, name, 40, 20)
	}

	cfg := config.NewTestConfig()
	if mutate != nil {
		mutate(cfg)
	}
	h := &harness{screen: &fakeScreen{}, ui: &uiQueue{ch: make(chan func(), 1024)}, dir: dir}
	opts = append([]Option{WithDispatcher(h.ui.dispatch), WithRand(rand.New(rand.NewSource(7)))}, opts...)
	v, err := New(cfg, h.screen, opts...)
	require.NoError(t, err)
	t.Cleanup(v.Close)
	h.v = v
	return h
}

// settle lets every load finish and runs its callbacks
func (h *harness) settle() {
	h.v.Cache().Wait()
	h.ui.drain()
}

func TestOpenShowsFirstImage(t *testing.T) {
	h := newHarness(t, nil, "b.png", "a.jpg", "c.gif")

	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	last := h.screen.last()
	assert.Equal(t, "a.jpg", last.ref.Name())
	// 40x20 fitted into the 200x100 test viewport
	assert.Equal(t, image.Pt(200, 100), last.size)

	st := h.screen.status()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Remaining)
	assert.False(t, st.Loading)
	assert.Equal(t, h.dir, h.v.Dir())
}

func TestOpenWithoutImages(t *testing.T) {
	h := newHarness(t, nil)
	testutils.CreateTestFilesWithContent(t, h.dir, map[string]string{"notes.txt": "x"})

	err := h.v.Open(h.dir)
	require.Error(t, err)
	assert.True(t, serr.IsNoImages(err))
	require.Len(t, h.screen.errors, 1)
	assert.True(t, serr.IsNoImages(h.screen.errors[0]))
	assert.Equal(t, -1, h.v.CurrentIndex())

	// Navigation on an empty viewer is a no-op
	h.v.Next()
	h.v.Previous()
	h.v.ToggleAutoplay()
	assert.False(t, h.v.Playing())
}

func TestNavigationWraps(t *testing.T) {
	h := newHarness(t, nil, "1.png", "2.png", "3.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	h.v.Previous()
	h.settle()
	assert.Equal(t, 2, h.v.CurrentIndex())
	assert.Equal(t, "3.png", h.screen.last().ref.Name())

	h.v.Next()
	h.settle()
	assert.Equal(t, 0, h.v.CurrentIndex())
	assert.Equal(t, "1.png", h.screen.last().ref.Name())

	require.NoError(t, h.v.Goto(1))
	h.settle()
	assert.Equal(t, "2.png", h.screen.last().ref.Name())
	assert.True(t, serr.IsInvalidArgument(h.v.Goto(3)))
}

func TestPrefetchWarmsNeighbours(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Cache.Prefetch = 1
		cfg.Cache.Capacity = 8
	}, "1.png", "2.png", "3.png", "4.png", "5.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	c := h.v.Cache()
	assert.True(t, c.Contains(0))
	assert.True(t, c.Contains(1))
	assert.True(t, c.Contains(4))
	assert.False(t, c.Contains(2))

	// Stepping onto a warmed image is a cache hit
	hits := c.Stats().Hits
	h.v.Next()
	h.settle()
	assert.Greater(t, c.Stats().Hits, hits)
	assert.Equal(t, "2.png", h.screen.last().ref.Name())
}

func TestZoomChangesRenderedSize(t *testing.T) {
	h := newHarness(t, nil, "a.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()
	require.Equal(t, image.Pt(200, 100), h.screen.last().size)

	h.v.ZoomIn()
	h.settle()
	assert.InDelta(t, 1.2, h.v.Params().Zoom, 1e-9)
	assert.Equal(t, image.Pt(240, 120), h.screen.last().size)

	h.v.ZoomOut()
	h.settle()
	assert.Equal(t, image.Pt(200, 100), h.screen.last().size)

	for i := 0; i < 50; i++ {
		h.v.ZoomIn()
	}
	assert.Equal(t, transform.MaxZoom, h.v.Params().Zoom)
	for i := 0; i < 100; i++ {
		h.v.ZoomOut()
	}
	assert.Equal(t, transform.MinZoom, h.v.Params().Zoom)
	h.settle()
}

func TestRotate(t *testing.T) {
	h := newHarness(t, nil, "a.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	h.v.Rotate()
	h.settle()
	assert.Equal(t, 90, h.v.Params().Rotation)
	// 20x40 after rotation, fitted into 200x100
	assert.Equal(t, image.Pt(50, 100), h.screen.last().size)

	h.v.Rotate()
	h.v.Rotate()
	h.v.Rotate()
	assert.Equal(t, 0, h.v.Params().Rotation)
	h.settle()
}

func TestFullscreen(t *testing.T) {
	h := newHarness(t, nil, "a.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	h.v.SetScreenSize(800, 800)
	h.v.ToggleFullscreen()
	h.settle()
	assert.True(t, h.v.Params().Fullscreen)
	assert.Equal(t, []bool{true}, h.screen.fullscreen)
	assert.Equal(t, image.Pt(800, 400), h.screen.last().size)

	// Leaving twice only notifies once
	h.v.SetFullscreen(false)
	h.v.SetFullscreen(false)
	h.settle()
	assert.Equal(t, []bool{true, false}, h.screen.fullscreen)
	assert.Equal(t, image.Pt(200, 100), h.screen.last().size)
}

func TestPaddingIsClamped(t *testing.T) {
	h := newHarness(t, nil, "a.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	h.v.SetPadding(transform.Padding{Top: 10, Bottom: -5, Left: 1000, Right: 0})
	h.settle()
	assert.Equal(t, transform.Padding{Top: 10, Bottom: 0, Left: 300, Right: 0}, h.v.Params().Padding)
	assert.Equal(t, image.Pt(500, 110), h.screen.last().size)
}

func TestShuffleToggle(t *testing.T) {
	names := []string{"01.png", "02.png", "03.png", "04.png", "05.png", "06.png"}
	h := newHarness(t, nil, names...)
	require.NoError(t, h.v.Open(h.dir))
	require.NoError(t, h.v.Goto(2))
	h.settle()

	h.v.ToggleShuffle()
	h.settle()
	assert.True(t, h.v.Status().Shuffle)
	assert.Equal(t, "03.png", h.screen.last().ref.Name(), "current image stays on screen")
	assert.Equal(t, 0, h.v.CurrentIndex())

	h.v.ToggleShuffle()
	h.settle()
	assert.False(t, h.v.Status().Shuffle)
	assert.Equal(t, 2, h.v.CurrentIndex(), "folder order restored around the current image")
	assert.Equal(t, "03.png", h.screen.last().ref.Name())
}

func TestSetIntervalClamps(t *testing.T) {
	h := newHarness(t, nil, "a.png")
	assert.Equal(t, config.MinIntervalMS, h.v.SetInterval(10))
	assert.Equal(t, config.MaxIntervalMS, h.v.SetInterval(100000))
	assert.Equal(t, 1500, h.v.SetInterval(1500))
	assert.Equal(t, 1500*time.Millisecond, h.v.Interval())
}

func TestAutoplayAdvances(t *testing.T) {
	h := newHarness(t, nil, "1.png", "2.png", "3.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	h.v.SetInterval(config.MinIntervalMS)
	h.v.ToggleAutoplay()
	assert.True(t, h.v.Playing())
	assert.True(t, h.screen.status().Playing)

	// Wait for a tick to be dispatched, then run it as the UI would
	select {
	case fn := <-h.ui.ch:
		fn()
	case <-time.After(3 * time.Second):
		t.Fatal("autoplay never ticked")
	}
	h.settle()
	assert.Equal(t, 1, h.v.CurrentIndex())

	h.v.ToggleAutoplay()
	assert.False(t, h.v.Playing())
}

func TestStopDiscardsQueuedTick(t *testing.T) {
	h := newHarness(t, nil, "1.png", "2.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	h.v.SetInterval(config.MinIntervalMS)
	h.v.ToggleAutoplay()
	var tick func()
	select {
	case tick = <-h.ui.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("autoplay never ticked")
	}
	h.v.StopAutoplay()
	tick()
	assert.Equal(t, 0, h.v.CurrentIndex())
}

func TestAutoplayFromConfig(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Slideshow.Autoplay = true }, "1.png", "2.png")
	require.NoError(t, h.v.Open(h.dir))
	assert.True(t, h.v.Playing())
	h.v.StopAutoplay()
	h.settle()
}

func TestReloadKeepsCurrentImage(t *testing.T) {
	h := newHarness(t, nil, "b.png", "c.png")
	require.NoError(t, h.v.Open(h.dir))
	require.NoError(t, h.v.Goto(1))
	h.settle()
	require.Equal(t, "c.png", h.screen.last().ref.Name())

	testutils.WriteTestImage(t, h.dir, "a.png", 10, 10)
	require.NoError(t, h.v.Reload())
	h.settle()

	assert.Equal(t, 3, h.v.Len())
	assert.Equal(t, 2, h.v.CurrentIndex())
	assert.Equal(t, "c.png", h.screen.last().ref.Name())
}

func TestReloadAfterFolderEmptied(t *testing.T) {
	h := newHarness(t, nil, "a.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	require.NoError(t, os.Remove(filepath.Join(h.dir, "a.png")))
	err := h.v.Reload()
	require.Error(t, err)
	assert.True(t, serr.IsNoImages(err))
	assert.Equal(t, 0, h.v.Len())
	assert.Equal(t, -1, h.v.CurrentIndex())
	assert.Len(t, h.screen.errors, 1)
}

func TestBrokenImageDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t, nil, "a.png", "c.png")
	testutils.WriteCorruptImage(t, h.dir, "b.png")
	require.NoError(t, h.v.Open(h.dir))
	h.settle()

	h.v.Next()
	h.settle()
	assert.Equal(t, "a.png", h.screen.last().ref.Name(), "broken image is never drawn")
	assert.True(t, h.screen.status().Loading)

	h.v.Next()
	h.settle()
	assert.Equal(t, "c.png", h.screen.last().ref.Name())
	assert.GreaterOrEqual(t, h.v.Cache().Stats().Failures, 1)
}

func TestRingDistance(t *testing.T) {
	assert.Equal(t, 1, ringDistance(0, 9, 10))
	assert.Equal(t, 2, ringDistance(8, 0, 10))
	assert.Equal(t, 0, ringDistance(3, 3, 10))
	assert.Equal(t, 5, ringDistance(0, 5, 10))
}

// heldLoader blocks every load until release is closed or the load is cancelled
func heldLoader(release <-chan struct{}) cache.LoaderFunc {
	return func(ctx context.Context, ref types.ImageRef, p transform.Params) (image.Image, error) {
		select {
		case <-release:
			w, h := p.Target()
			return image.NewRGBA(image.Rect(0, 0, w, h)), nil
		case <-ctx.Done():
			return nil, serr.NewImageError("load cancelled", ref.Index, ref.Path, serr.Cancelled, ctx.Err())
		}
	}
}

func TestResizeCancelsOutdatedLoads(t *testing.T) {
	release := make(chan struct{})
	h := newHarnessWith(t, nil, []Option{WithLoader(heldLoader(release))},
		"1.png", "2.png", "3.png", "4.png", "5.png", "6.png", "7.png")
	require.NoError(t, h.v.Open(h.dir))

	// A window drag reports a new size on every layout pass
	for i := 0; i < 40; i++ {
		h.v.SetViewport(200+i, 100+i)
	}
	radius := config.NewTestConfig().Cache.Prefetch
	assert.LessOrEqual(t, h.v.Cache().InFlight(), 2*radius+1)

	close(release)
	h.settle()
	assert.Equal(t, 0, h.v.Cache().InFlight())
	assert.Equal(t, image.Pt(239, 139), h.screen.last().size)
	assert.Equal(t, 2*radius+1, h.v.Cache().Len())
}

func TestSessionFollowsSequence(t *testing.T) {
	h := newHarness(t, nil, "1.png", "2.png", "3.png")
	require.NoError(t, h.v.Open(h.dir))
	first := h.v.Cache().Session()
	assert.NotEmpty(t, first)

	h.v.ToggleShuffle()
	assert.NotEqual(t, first, h.v.Cache().Session())

	require.NoError(t, h.v.Reload())
	assert.NotEqual(t, first, h.v.Cache().Session())
}
