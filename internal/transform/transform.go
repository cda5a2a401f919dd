package transform

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"math"
	"os"

	serr "slideview/internal/errors"
	"slideview/internal/scan"
	"slideview/pkg/types"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp" // register decoder
)

// Source is a decoded image together with its EXIF orientation
type Source struct {
	Image       image.Image
	Format      string
	Orientation int
}

// Decode reads and decodes the image at path
func Decode(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NewFileError("image not found", path, serr.FileNotFound, err)
		}
		return nil, serr.NewFileError("failed to read image", path, serr.FileAccessDenied, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, serr.NewImageError("failed to decode image", -1, path, serr.DecodeFailed, err)
	}

	src := &Source{Image: img, Format: format}
	if format == "jpeg" {
		src.Orientation = scan.ReadExif(bytes.NewReader(data)).Orientation
	}
	return src, nil
}

// Orient applies an EXIF orientation (1-8) so the image appears upright
func Orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// MaxPixels bounds the area of a rendered image, about 96 MB of RGBA
const MaxPixels = 24_000_000

// FitSize returns the size of a w x h image scaled to fit tw x th and then
// multiplied by zoom. The result is at least 1x1 and at most MaxPixels,
// keeping the aspect ratio.
func FitSize(w, h, tw, th int, zoom float64) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if tw <= 0 || th <= 0 {
		tw, th = w, h
	}
	scale := math.Min(float64(tw)/float64(w), float64(th)/float64(h)) * zoom
	fw, fh := float64(w)*scale, float64(h)*scale
	if area := fw * fh; area > MaxPixels {
		shrink := math.Sqrt(MaxPixels / area)
		fw, fh = fw*shrink, fh*shrink
	}
	nw, nh := int(fw), int(fh)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// Apply runs the pipeline: orientation, rotation, fit and zoom, padding
func Apply(src *Source, p Params) image.Image {
	img := src.Image
	if p.AutoOrient {
		img = Orient(img, src.Orientation)
	}

	switch p.NormalizedRotation() {
	case 90:
		img = imaging.Rotate90(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate270(img)
	}

	b := img.Bounds()
	tw, th := p.Target()
	nw, nh := FitSize(b.Dx(), b.Dy(), tw, th, p.EffectiveZoom())
	if nw != b.Dx() || nh != b.Dy() {
		img = imaging.Resize(img, nw, nh, imaging.Lanczos)
	}

	return Pad(img, p.Padding)
}

// Pad places img on a white canvas extended by the given borders
func Pad(img image.Image, pad Padding) image.Image {
	if pad == (Padding{}) {
		return img
	}
	b := img.Bounds()
	canvas := imaging.New(b.Dx()+pad.Left+pad.Right, b.Dy()+pad.Top+pad.Bottom, color.White)
	return imaging.Paste(canvas, img, image.Pt(pad.Left, pad.Top))
}

// FileLoader loads images from disk and transforms them
type FileLoader struct{}

// NewFileLoader creates a loader reading images from the local file system
func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load decodes ref and applies p. It gives up between steps once ctx is done.
func (l *FileLoader) Load(ctx context.Context, ref types.ImageRef, p Params) (image.Image, error) {
	if err := cancelled(ctx, ref); err != nil {
		return nil, err
	}

	src, err := Decode(ref.Path)
	if err != nil {
		var ie *serr.ImageError
		if serr.As(err, &ie) {
			return nil, serr.NewImageError("failed to load image", ref.Index, ref.Path, serr.DecodeFailed, err)
		}
		return nil, err
	}

	if err := cancelled(ctx, ref); err != nil {
		return nil, err
	}
	img := Apply(src, p)

	if err := cancelled(ctx, ref); err != nil {
		return nil, err
	}
	return img, nil
}

func cancelled(ctx context.Context, ref types.ImageRef) error {
	if err := ctx.Err(); err != nil {
		return serr.NewImageError("load cancelled", ref.Index, ref.Path, serr.Cancelled, err)
	}
	return nil
}
