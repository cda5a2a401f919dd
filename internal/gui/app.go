//go:build !nogui
// +build !nogui

package gui

import (
	"image"
	"image/color"
	"os"

	"slideview/internal/cache"
	"slideview/internal/config"
	serr "slideview/internal/errors"
	"slideview/internal/log"
	"slideview/internal/viewer"
	"slideview/internal/watch"
	"slideview/pkg/types"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const appID = "io.github.slideview"

// Option configures an App
type Option func(*App)

// WithFyneApp runs the window inside an existing fyne application
func WithFyneApp(fa fyne.App) Option {
	return func(a *App) { a.fyneApp = fa }
}

// WithDispatcher replaces fyne.Do as the route from background loads to the
// interface
func WithDispatcher(d cache.Dispatcher) Option {
	return func(a *App) { a.dispatch = d }
}

// App represents the slideshow window
type App struct {
	fyneApp    fyne.App
	mainWindow fyne.Window
	cfg        *config.Config
	viewer     *viewer.Viewer
	dispatch   cache.Dispatcher

	imageView      *canvas.Image
	statusLabel    *widget.Label
	remainingLabel *widget.Label
	intervalLabel  *widget.Label
	progress       *widget.ProgressBar
	speedSlider    *widget.Slider
	playButton     *widget.Button
	shuffleButton  *widget.Button
	fullButton     *widget.Button

	watcher    *watch.Watcher
	stopFollow func()
	closed     bool
}

// NewApp creates the slideshow window and its viewer
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.New()
	}
	a := &App{cfg: cfg, dispatch: fyne.Do}
	for _, opt := range opts {
		opt(a)
	}
	if a.fyneApp == nil {
		a.fyneApp = app.NewWithID(appID)
	}

	v, err := viewer.New(cfg, a, viewer.WithDispatcher(a.dispatch))
	if err != nil {
		return nil, err
	}
	a.viewer = v

	if cfg.Directories.Watch {
		w, err := watch.New(watch.WithFilter(v.Scanner().Match))
		if err != nil {
			log.LogWithFields(log.F("error", err)).Warn("Folder watching disabled")
		} else {
			a.watcher = w
		}
	}

	a.setupMainWindow()
	return a, nil
}

// Viewer returns the slideshow controller behind the window
func (a *App) Viewer() *viewer.Viewer {
	return a.viewer
}

// GetMainWindow returns the main window for testing purposes
func (a *App) GetMainWindow() fyne.Window {
	return a.mainWindow
}

// Run opens dir, if given, and blocks until the window is closed
func (a *App) Run(dir string) error {
	if dir != "" {
		// The error has already been shown in a dialog
		_ = a.Open(dir)
	}
	a.mainWindow.ShowAndRun()
	a.shutdown()
	return nil
}

// Open shows the images of dir and starts following its changes
func (a *App) Open(dir string) error {
	if err := a.viewer.Open(dir); err != nil {
		return err
	}
	a.follow(a.viewer.Dir())
	return nil
}

func (a *App) follow(dir string) {
	if a.watcher == nil {
		return
	}
	if err := a.watcher.Watch(dir); err != nil {
		log.LogWithFields(log.F("directory", dir), log.F("error", err)).Warn("Cannot watch folder")
		return
	}
	if a.stopFollow != nil {
		return
	}
	if !a.watcher.IsRunning() {
		if err := a.watcher.Start(); err != nil {
			log.LogWithFields(log.F("error", err)).Warn("Cannot start folder watcher")
			return
		}
	}
	a.stopFollow = watch.Follow(a.watcher, watch.DefaultQuiet, func() {
		a.dispatch(func() {
			if a.closed {
				return
			}
			if err := a.viewer.Reload(); err != nil {
				log.LogWithError(err).Warn("Reload failed")
			}
		})
	})
}

func (a *App) shutdown() {
	if a.closed {
		return
	}
	a.closed = true
	if a.stopFollow != nil {
		a.stopFollow()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.viewer.Close()
}

// setupMainWindow creates and configures the main application window
func (a *App) setupMainWindow() {
	a.mainWindow = a.fyneApp.NewWindow(appTitle)
	a.mainWindow.Resize(fyne.NewSize(float32(a.cfg.Display.Width), float32(a.cfg.Display.Height)))

	// Images arrive already fitted and zoomed, so they are drawn pixel for
	// pixel; zooming past the viewport scrolls
	a.imageView = canvas.NewImageFromImage(nil)
	a.imageView.FillMode = canvas.ImageFillOriginal

	background := canvas.NewRectangle(color.Black)
	scroller := container.NewScroll(container.NewCenter(a.imageView))
	stage := container.New(&viewport{onResize: a.resized}, background, scroller)

	content := container.NewBorder(
		a.createToolbar(),
		a.createStatusBar(),
		nil,
		nil,
		stage,
	)
	a.mainWindow.SetContent(content)
	a.mainWindow.Canvas().SetOnTypedKey(a.handleKey)
	a.mainWindow.SetOnClosed(a.shutdown)
	if a.viewer.Params().Fullscreen {
		a.SetFullscreen(true)
	}
}

func (a *App) createToolbar() fyne.CanvasObject {
	a.playButton = widget.NewButtonWithIcon("Play", theme.MediaPlayIcon(), a.viewer.ToggleAutoplay)
	a.shuffleButton = widget.NewButtonWithIcon("Shuffle", theme.MediaReplayIcon(), a.viewer.ToggleShuffle)
	a.fullButton = widget.NewButtonWithIcon("Fullscreen", theme.ViewFullScreenIcon(), a.viewer.ToggleFullscreen)

	return container.NewHBox(
		widget.NewButtonWithIcon("Open", theme.FolderOpenIcon(), a.chooseFolder),
		widget.NewSeparator(),
		widget.NewButtonWithIcon("Previous", theme.MediaSkipPreviousIcon(), a.viewer.Previous),
		a.playButton,
		widget.NewButtonWithIcon("Next", theme.MediaSkipNextIcon(), a.viewer.Next),
		widget.NewSeparator(),
		a.shuffleButton,
		widget.NewButtonWithIcon("Zoom In", theme.ZoomInIcon(), a.viewer.ZoomIn),
		widget.NewButtonWithIcon("Zoom Out", theme.ZoomOutIcon(), a.viewer.ZoomOut),
		widget.NewButtonWithIcon("Rotate", theme.ViewRefreshIcon(), a.viewer.Rotate),
		a.fullButton,
		layout.NewSpacer(),
		widget.NewButtonWithIcon("Close", theme.CancelIcon(), a.mainWindow.Close),
	)
}

func (a *App) createStatusBar() fyne.CanvasObject {
	interval := int(a.viewer.Interval().Milliseconds())

	a.intervalLabel = widget.NewLabel(intervalText(interval))
	a.speedSlider = widget.NewSlider(config.MinIntervalMS, config.MaxIntervalMS)
	a.speedSlider.Step = 100
	a.speedSlider.SetValue(float64(interval))
	a.speedSlider.OnChanged = func(value float64) {
		ms := a.viewer.SetInterval(int(value))
		a.intervalLabel.SetText(intervalText(ms))
	}

	a.progress = widget.NewProgressBar()
	a.progress.Max = 100
	a.remainingLabel = widget.NewLabel(remainingText(0))
	a.statusLabel = widget.NewLabel("Open a folder to start")
	a.statusLabel.Truncation = fyne.TextTruncateEllipsis

	return container.NewVBox(
		container.NewBorder(nil, nil, a.intervalLabel, nil, a.speedSlider),
		a.progress,
		container.NewBorder(nil, nil, nil, a.remainingLabel, a.statusLabel),
	)
}

func (a *App) chooseFolder() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			a.ShowError(err)
			return
		}
		if uri == nil {
			return
		}
		_ = a.Open(uri.Path())
	}, a.mainWindow)
}

func (a *App) handleKey(ke *fyne.KeyEvent) {
	switch ke.Name {
	case fyne.KeyLeft:
		a.viewer.Previous()
	case fyne.KeyRight:
		a.viewer.Next()
	case fyne.KeySpace:
		a.viewer.ToggleAutoplay()
	case fyne.KeyF:
		a.viewer.ToggleFullscreen()
	case fyne.KeyEscape:
		a.viewer.SetFullscreen(false)
	case fyne.KeyPlus, fyne.KeyEqual:
		a.viewer.ZoomIn()
	case fyne.KeyMinus:
		a.viewer.ZoomOut()
	case fyne.KeyR:
		a.viewer.Rotate()
	}
}

// resized reports the drawing area in pixels
func (a *App) resized(size fyne.Size) {
	scale := a.canvasScale()
	w, h := int(size.Width*scale), int(size.Height*scale)
	if w <= 0 || h <= 0 {
		return
	}
	if a.viewer.Params().Fullscreen {
		a.viewer.SetScreenSize(w, h)
		return
	}
	a.viewer.SetViewport(w, h)
}

// ShowImage draws an image produced by the cache
func (a *App) ShowImage(ref types.ImageRef, img image.Image) {
	a.setImage(img)
}

func (a *App) setImage(img image.Image) {
	size := fyne.NewSize(0, 0)
	if img != nil {
		scale := a.canvasScale()
		b := img.Bounds()
		size = fyne.NewSize(float32(b.Dx())/scale, float32(b.Dy())/scale)
	}
	a.imageView.Image = img
	a.imageView.SetMinSize(size)
	a.imageView.Refresh()
}

func (a *App) canvasScale() float32 {
	if scale := a.mainWindow.Canvas().Scale(); scale > 0 {
		return scale
	}
	return 1
}

// SetStatus updates every widget that reflects the slideshow state
func (a *App) SetStatus(s viewer.Status) {
	size := int64(-1)
	if s.Ref.Path != "" {
		if info, err := os.Stat(s.Ref.Path); err == nil {
			size = info.Size()
		}
	}

	a.statusLabel.SetText(statusText(s, size))
	a.remainingLabel.SetText(remainingText(s.Remaining))
	a.progress.SetValue(s.Percent)
	a.mainWindow.SetTitle(windowTitle(s))

	if s.Playing {
		a.playButton.SetText("Pause")
		a.playButton.SetIcon(theme.MediaPauseIcon())
	} else {
		a.playButton.SetText("Play")
		a.playButton.SetIcon(theme.MediaPlayIcon())
	}
	if s.Shuffle {
		a.shuffleButton.Importance = widget.HighImportance
	} else {
		a.shuffleButton.Importance = widget.MediumImportance
	}
	a.shuffleButton.Refresh()

	if s.Total == 0 {
		a.setImage(nil)
	}
}

// SetFullscreen switches the window in or out of fullscreen
func (a *App) SetFullscreen(on bool) {
	a.mainWindow.SetFullScreen(on)
	if on {
		a.fullButton.SetIcon(theme.ViewRestoreIcon())
	} else {
		a.fullButton.SetIcon(theme.ViewFullScreenIcon())
	}
}

// ShowError displays an error dialog
func (a *App) ShowError(err error) {
	if !serr.IsNoImages(err) {
		log.LogWithError(err).Error("Slideshow error")
	}
	dialog.ShowError(err, a.mainWindow)
}

// IsGUIAvailable returns whether the GUI is available in this build
func IsGUIAvailable() bool {
	return true
}

func newInterface(cfg *config.Config) (Interface, error) {
	return NewApp(cfg)
}

// viewport stretches its objects over the whole area and reports size
// changes so images can be transformed for the space they get
type viewport struct {
	onResize func(fyne.Size)
	last     fyne.Size
}

func (v *viewport) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for _, o := range objects {
		o.Move(fyne.NewPos(0, 0))
		o.Resize(size)
	}
	if size != v.last {
		v.last = size
		if v.onResize != nil {
			v.onResize(size)
		}
	}
}

func (v *viewport) MinSize([]fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(160, 120)
}
