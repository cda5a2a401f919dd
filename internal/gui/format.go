package gui

import (
	"fmt"
	"strings"

	"slideview/internal/viewer"

	"github.com/dustin/go-humanize"
)

const appTitle = "Slideview"

// remainingText is the label under the progress bar
func remainingText(n int) string {
	if n == 1 {
		return "1 image remaining"
	}
	return fmt.Sprintf("%s images remaining", humanize.Comma(int64(n)))
}

// intervalText labels the speed slider
func intervalText(ms int) string {
	return fmt.Sprintf("Interval: %.1f s", float64(ms)/1000)
}

// statusText builds the status line. size is the file size in bytes, or a
// negative value when it is unknown.
func statusText(s viewer.Status, size int64) string {
	if s.Total == 0 {
		return "No images"
	}

	parts := []string{
		fmt.Sprintf("%d/%d", s.Ref.Index+1, s.Total),
		s.Ref.Name(),
	}
	if size >= 0 {
		parts = append(parts, humanize.Bytes(uint64(size)))
	}
	if s.Zoom != 1 {
		parts = append(parts, fmt.Sprintf("zoom %.0f%%", s.Zoom*100))
	}
	if s.Rotation != 0 {
		parts = append(parts, fmt.Sprintf("%d°", s.Rotation))
	}
	if s.Shuffle {
		parts = append(parts, "shuffle")
	}
	if s.Loading {
		parts = append(parts, "loading...")
	}
	return strings.Join(parts, "  ")
}

// windowTitle names the shown image in the title bar
func windowTitle(s viewer.Status) string {
	if s.Total == 0 || s.Ref.Path == "" {
		return appTitle
	}
	return fmt.Sprintf("%s - %s (%d/%d)", appTitle, s.Ref.Name(), s.Ref.Index+1, s.Total)
}
