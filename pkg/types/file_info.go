package types

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ImageRef identifies one image at a fixed position of the current sequence.
// A sequence is replaced wholesale on reload or shuffle; refs are never mutated.
type ImageRef struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// Name returns the base name of the image file
func (r ImageRef) Name() string {
	return filepath.Base(r.Path)
}

// String returns "#index name"
func (r ImageRef) String() string {
	return fmt.Sprintf("#%d %s", r.Index, r.Name())
}

// ImageInfo holds metadata gathered about an image file
type ImageInfo struct {
	Path        string            `json:"path"`
	ContentType string            `json:"type"`
	Size        int64             `json:"size"`
	Width       int               `json:"width,omitempty"`
	Height      int               `json:"height,omitempty"`
	ModTime     time.Time         `json:"mod_time"`
	Orientation int               `json:"orientation,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Name returns the base name of the file
func (f *ImageInfo) Name() string {
	return filepath.Base(f.Path)
}

// ToJSON converts ImageInfo to a JSON string
func (f *ImageInfo) ToJSON() string {
	jsonBytes, _ := json.Marshal(f)
	return string(jsonBytes)
}

// String returns a human-readable representation
func (f *ImageInfo) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("File: %s\n", f.Path))
	sb.WriteString(fmt.Sprintf("Type: %s\n", f.ContentType))
	sb.WriteString(fmt.Sprintf("Size: %s\n", f.HumanSize()))
	if f.Width > 0 && f.Height > 0 {
		sb.WriteString(fmt.Sprintf("Dimensions: %dx%d\n", f.Width, f.Height))
	}
	for _, k := range sortedKeys(f.Metadata) {
		sb.WriteString(fmt.Sprintf("%s: %s\n", k, f.Metadata[k]))
	}
	return sb.String()
}

// HumanSize returns the file size as "1.2 MB"
func (f *ImageInfo) HumanSize() string {
	if f.Size < 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(f.Size))
}

// IsSymlink checks if the file is a symbolic link
func (f *ImageInfo) IsSymlink() bool {
	info, err := os.Lstat(f.Path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
