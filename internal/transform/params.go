// Package transform turns a source image file into a display-ready image.
package transform

import (
	"fmt"
	"math"
)

// Zoom bounds applied by the viewer controls
const (
	MinZoom = 0.1
	MaxZoom = 10.0
)

// Padding is the white border added around the fitted image, in pixels
type Padding struct {
	Top    int
	Bottom int
	Left   int
	Right  int
}

// Params is an immutable snapshot of every setting that shapes the displayed
// image. Loads receive a copy taken when they are scheduled.
type Params struct {
	Zoom       float64
	Rotation   int // degrees, multiple of 90
	Fullscreen bool

	// Viewport used while windowed
	Width  int
	Height int
	// Viewport used while fullscreen; zero falls back to Width/Height
	ScreenWidth  int
	ScreenHeight int

	Padding    Padding
	AutoOrient bool
}

// Signature is the comparable identity of a Params value. Two snapshots with
// the same signature produce the same image for a given source.
type Signature struct {
	ZoomMilli  int
	Rotation   int
	Fullscreen bool
	Width      int
	Height     int
	Padding    Padding
	AutoOrient bool
}

// DefaultParams returns an unzoomed, unrotated snapshot for a w x h viewport
func DefaultParams(w, h int) Params {
	return Params{Zoom: 1, Width: w, Height: h, AutoOrient: true}
}

// NormalizedRotation maps Rotation onto 0, 90, 180 or 270
func (p Params) NormalizedRotation() int {
	r := p.Rotation % 360
	if r < 0 {
		r += 360
	}
	return r / 90 * 90
}

// EffectiveZoom returns the zoom factor clamped to [MinZoom, MaxZoom];
// an unset zoom counts as 1.
func (p Params) EffectiveZoom() float64 {
	z := p.Zoom
	if z <= 0 || math.IsNaN(z) {
		return 1
	}
	return math.Min(math.Max(z, MinZoom), MaxZoom)
}

// Target returns the box the image is fitted into
func (p Params) Target() (int, int) {
	if p.Fullscreen && p.ScreenWidth > 0 && p.ScreenHeight > 0 {
		return p.ScreenWidth, p.ScreenHeight
	}
	return p.Width, p.Height
}

// Signature derives the cache identity of the snapshot. Zoom is compared in
// thousandths so repeated multiply/divide steps land on the same key.
func (p Params) Signature() Signature {
	w, h := p.Target()
	return Signature{
		ZoomMilli:  int(math.Round(p.EffectiveZoom() * 1000)),
		Rotation:   p.NormalizedRotation(),
		Fullscreen: p.Fullscreen,
		Width:      w,
		Height:     h,
		Padding:    p.Padding,
		AutoOrient: p.AutoOrient,
	}
}

func (s Signature) String() string {
	mode := "win"
	if s.Fullscreen {
		mode = "fs"
	}
	return fmt.Sprintf("z%.3f r%d %s %dx%d pad%d,%d,%d,%d orient=%t",
		float64(s.ZoomMilli)/1000, s.Rotation, mode, s.Width, s.Height,
		s.Padding.Top, s.Padding.Bottom, s.Padding.Left, s.Padding.Right, s.AutoOrient)
}
