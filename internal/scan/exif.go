package scan

import (
	"io"
	"strconv"
	"sync"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

var registerParsers sync.Once

// Exif is the subset of EXIF data the viewer uses
type Exif struct {
	// Orientation is the EXIF orientation tag (1-8), 0 when absent
	Orientation int
	Fields      map[string]string
}

// ReadExif extracts orientation, capture time and camera model from r.
// Missing or unreadable EXIF data yields an empty result, not an error.
func ReadExif(r io.Reader) Exif {
	registerParsers.Do(func() {
		exif.RegisterParsers(mknote.All...)
	})

	out := Exif{Fields: map[string]string{}}
	x, err := exif.Decode(r)
	if err != nil {
		return out
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil && v >= 1 && v <= 8 {
			out.Orientation = v
			out.Fields["Orientation"] = strconv.Itoa(v)
		}
	}
	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		if s, err := tag.StringVal(); err == nil && s != "" {
			out.Fields["DateTimeOriginal"] = s
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil && s != "" {
			out.Fields["CameraModel"] = s
		}
	}
	return out
}
