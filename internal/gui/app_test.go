//go:build !nogui
// +build !nogui

package gui

import (
	"testing"

	"slideview/internal/config"
	"slideview/pkg/testutils"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uiQueue holds dispatched callbacks until the test runs them
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

func newTestApp(t *testing.T, names ...string) (*App, *uiQueue, string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		testutils.WriteTestImage(t, dir, name, 40, 20)
	}

	ui := &uiQueue{ch: make(chan func(), 1024)}
	a, err := NewApp(config.NewTestConfig(), WithFyneApp(test.NewTempApp(t)), WithDispatcher(ui.dispatch))
	require.NoError(t, err)
	t.Cleanup(a.shutdown)
	return a, ui, dir
}

func settle(a *App, ui *uiQueue) {
	a.Viewer().Cache().Wait()
	ui.drain()
}

func TestWindowLayout(t *testing.T) {
	a, _, _ := newTestApp(t)

	w := a.GetMainWindow()
	require.NotNil(t, w)
	assert.Equal(t, appTitle, w.Title())
	_, ok := w.Content().(*fyne.Container)
	assert.True(t, ok, "content should be a container")

	assert.Equal(t, "0 images remaining", a.remainingLabel.Text)
	assert.Equal(t, float64(config.MinIntervalMS), a.speedSlider.Min)
	assert.Equal(t, float64(config.MaxIntervalMS), a.speedSlider.Max)
	assert.Equal(t, "Play", a.playButton.Text)
}

func TestOpenShowsImage(t *testing.T) {
	a, ui, dir := newTestApp(t, "a.png", "b.png", "c.png")

	require.NoError(t, a.Open(dir))
	settle(a, ui)

	require.NotNil(t, a.imageView.Image)
	assert.Equal(t, "2 images remaining", a.remainingLabel.Text)
	assert.Contains(t, a.statusLabel.Text, "1/3")
	assert.Contains(t, a.statusLabel.Text, "a.png")
	assert.Equal(t, "Slideview - a.png (1/3)", a.GetMainWindow().Title())
	assert.InDelta(t, 100.0/3, a.progress.Value, 0.01)
}

func TestKeyboardNavigation(t *testing.T) {
	a, ui, dir := newTestApp(t, "a.png", "b.png", "c.png")
	require.NoError(t, a.Open(dir))
	settle(a, ui)

	a.handleKey(&fyne.KeyEvent{Name: fyne.KeyRight})
	settle(a, ui)
	assert.Equal(t, 1, a.Viewer().CurrentIndex())
	assert.Contains(t, a.statusLabel.Text, "b.png")

	a.handleKey(&fyne.KeyEvent{Name: fyne.KeyLeft})
	a.handleKey(&fyne.KeyEvent{Name: fyne.KeyLeft})
	settle(a, ui)
	assert.Equal(t, 2, a.Viewer().CurrentIndex())
	assert.Equal(t, "0 images remaining", a.remainingLabel.Text)

	a.handleKey(&fyne.KeyEvent{Name: fyne.KeySpace})
	assert.True(t, a.Viewer().Playing())
	assert.Equal(t, "Pause", a.playButton.Text)
	a.handleKey(&fyne.KeyEvent{Name: fyne.KeySpace})
	assert.False(t, a.Viewer().Playing())
	assert.Equal(t, "Play", a.playButton.Text)
}

func TestFullscreenKeys(t *testing.T) {
	a, ui, dir := newTestApp(t, "a.png")
	require.NoError(t, a.Open(dir))
	settle(a, ui)

	a.handleKey(&fyne.KeyEvent{Name: fyne.KeyF})
	settle(a, ui)
	assert.True(t, a.Viewer().Params().Fullscreen)

	a.handleKey(&fyne.KeyEvent{Name: fyne.KeyEscape})
	settle(a, ui)
	assert.False(t, a.Viewer().Params().Fullscreen)
}

func TestToolbarButtons(t *testing.T) {
	a, ui, dir := newTestApp(t, "a.png", "b.png")
	require.NoError(t, a.Open(dir))
	settle(a, ui)

	test.Tap(a.shuffleButton)
	settle(a, ui)
	assert.True(t, a.Viewer().Status().Shuffle)
	assert.Contains(t, a.statusLabel.Text, "shuffle")

	test.Tap(a.playButton)
	assert.True(t, a.Viewer().Playing())
	test.Tap(a.playButton)
	assert.False(t, a.Viewer().Playing())
}

func TestSpeedSlider(t *testing.T) {
	a, _, _ := newTestApp(t)

	// Dragging the slider reports through OnChanged
	a.speedSlider.OnChanged(1500)
	assert.Equal(t, 1500, int(a.Viewer().Interval().Milliseconds()))
	assert.Equal(t, "Interval: 1.5 s", a.intervalLabel.Text)

	a.speedSlider.OnChanged(100000)
	assert.Equal(t, config.MaxIntervalMS, int(a.Viewer().Interval().Milliseconds()))
}

func TestOpenEmptyFolder(t *testing.T) {
	a, _, dir := newTestApp(t)
	testutils.CreateTestFilesWithContent(t, dir, map[string]string{"readme.txt": "x"})

	assert.Error(t, a.Open(dir))
	assert.Nil(t, a.imageView.Image)
	assert.Equal(t, appTitle, a.GetMainWindow().Title())
}

func TestViewportResize(t *testing.T) {
	a, ui, dir := newTestApp(t, "a.png")
	require.NoError(t, a.Open(dir))
	settle(a, ui)

	a.resized(fyne.NewSize(300, 150))
	settle(a, ui)
	p := a.Viewer().Params()
	scale := a.GetMainWindow().Canvas().Scale()
	assert.Equal(t, int(300*scale), p.Width)
	assert.Equal(t, int(150*scale), p.Height)

	// Degenerate sizes are ignored
	a.resized(fyne.NewSize(0, 0))
	assert.Equal(t, int(300*scale), a.Viewer().Params().Width)
}

func TestZoomGrowsImage(t *testing.T) {
	a, ui, dir := newTestApp(t, "a.png")
	require.NoError(t, a.Open(dir))
	a.resized(fyne.NewSize(300, 150))
	settle(a, ui)

	before := a.imageView.MinSize()
	require.Greater(t, before.Width, float32(0))

	a.handleKey(&fyne.KeyEvent{Name: fyne.KeyPlus})
	settle(a, ui)
	after := a.imageView.MinSize()
	assert.Greater(t, after.Width, before.Width)
	assert.Greater(t, after.Height, before.Height)
	assert.Equal(t, canvas.ImageFillOriginal, a.imageView.FillMode)

	a.handleKey(&fyne.KeyEvent{Name: fyne.KeyMinus})
	settle(a, ui)
	assert.InDelta(t, before.Width, a.imageView.MinSize().Width, 1)
}

func TestFactory(t *testing.T) {
	assert.True(t, IsGUIAvailable())
	assert.NotNil(t, NewFactory(config.NewTestConfig()))
}
