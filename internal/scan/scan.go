// Package scan enumerates image folders and gathers per-file metadata.
package scan

import (
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"os"
	"path/filepath"
	"strings"

	serr "slideview/internal/errors"
	"slideview/internal/log"
	"slideview/pkg/types"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"
	_ "golang.org/x/image/bmp" // register decoder
)

// DefaultExtensions is the allow-list used when none is configured
var DefaultExtensions = []string{"jpg", "jpeg", "png", "bmp", "gif"}

// Scanner finds supported images in a folder
type Scanner struct {
	extensions []string
	matcher    glob.Glob
	sniff      bool
}

// Option configures a Scanner
type Option func(*Scanner)

// WithExtensions replaces the extension allow-list
func WithExtensions(exts []string) Option {
	return func(s *Scanner) {
		if len(exts) > 0 {
			s.extensions = exts
		}
	}
}

// WithSniff makes the scanner reject files whose content is not an image
func WithSniff(sniff bool) Option {
	return func(s *Scanner) {
		s.sniff = sniff
	}
}

// New builds a Scanner; extensions are matched case-insensitively
func New(opts ...Option) (*Scanner, error) {
	s := &Scanner{extensions: DefaultExtensions}
	for _, opt := range opts {
		opt(s)
	}

	exts := make([]string, 0, len(s.extensions))
	for _, ext := range s.extensions {
		ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		if ext == "" {
			continue
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		return nil, serr.NewConfigError("no image extensions", "formats.extensions", serr.InvalidConfig, nil)
	}
	s.extensions = exts

	pattern := fmt.Sprintf("*.{%s}", strings.Join(exts, ","))
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return nil, serr.NewConfigError("invalid extension pattern", pattern, serr.InvalidConfig, err)
	}
	s.matcher = matcher
	return s, nil
}

// Extensions returns the normalized allow-list
func (s *Scanner) Extensions() []string {
	out := make([]string, len(s.extensions))
	copy(out, s.extensions)
	return out
}

// Match reports whether a file name carries an allowed extension
func (s *Scanner) Match(name string) bool {
	return s.matcher.Match(strings.ToLower(filepath.Base(name)))
}

// Folder returns the supported images of dir in name order.
// A folder without supported images yields an error of kind NoImages.
func (s *Scanner) Folder(dir string) ([]types.ImageRef, error) {
	logger := log.LogWithFields(log.F("directory", dir))

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NewFileError("folder not found", dir, serr.FileNotFound, err)
		}
		return nil, serr.NewFileError("cannot access folder", dir, serr.FileAccessDenied, err)
	}
	if !info.IsDir() {
		return nil, serr.NewFileError("not a folder", dir, serr.InvalidPath, nil)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, serr.NewFileError("failed to read folder", dir, serr.FileAccessDenied, err)
	}

	var refs []types.ImageRef
	for _, entry := range entries {
		if entry.IsDir() || !s.Match(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if s.sniff {
			if ok, _ := IsImage(path); !ok {
				logger.With(log.F("file", entry.Name())).Debug("Skipping file with non-image content")
				continue
			}
		}
		refs = append(refs, types.ImageRef{Index: len(refs), Path: path})
	}

	if len(refs) == 0 {
		return nil, serr.NewFileError("no supported image files found", dir, serr.NoImages, nil)
	}

	logger.With(log.F("images", len(refs))).Info("Folder scanned")
	return refs, nil
}

// Sniff detects the content type of a file from its leading bytes
func Sniff(path string) (string, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "", serr.NewFileError("failed to detect content type", path, serr.FileAccessDenied, err)
	}
	return mime.String(), nil
}

// IsImage reports whether the sniffed content type is an image
func IsImage(path string) (bool, error) {
	ct, err := Sniff(path)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(ct, "image/"), nil
}

// Info gathers size, content type, dimensions and EXIF metadata of one file
func Info(path string) (*types.ImageInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, serr.NewFileError("failed to stat file", path, serr.FileNotFound, err)
		}
		return nil, serr.NewFileError("failed to stat file", path, serr.FileAccessDenied, err)
	}

	info := &types.ImageInfo{
		Path:     path,
		Size:     st.Size(),
		ModTime:  st.ModTime(),
		Metadata: map[string]string{},
	}

	if ct, err := Sniff(path); err == nil {
		info.ContentType = ct
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, serr.NewFileError("failed to open file", path, serr.FileAccessDenied, err)
	}
	defer f.Close()

	if cfg, format, err := image.DecodeConfig(f); err == nil {
		info.Width = cfg.Width
		info.Height = cfg.Height
		info.Metadata["Format"] = format
	}

	if _, err := f.Seek(0, 0); err == nil {
		meta := ReadExif(f)
		info.Orientation = meta.Orientation
		for k, v := range meta.Fields {
			info.Metadata[k] = v
		}
	}

	return info, nil
}
