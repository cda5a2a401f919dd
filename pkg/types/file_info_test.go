package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageRef(t *testing.T) {
	ref := ImageRef{Index: 3, Path: "/photos/trip/beach.JPG"}
	assert.Equal(t, "beach.JPG", ref.Name())
	assert.Equal(t, "#3 beach.JPG", ref.String())
}

func TestImageInfoString(t *testing.T) {
	info := &ImageInfo{
		Path:        "/photos/a.png",
		ContentType: "image/png",
		Size:        2048,
		Width:       640,
		Height:      480,
		Metadata:    map[string]string{"CameraModel": "X100", "DateTimeOriginal": "2020:01:02 03:04:05"},
	}

	out := info.String()
	assert.Contains(t, out, "File: /photos/a.png")
	assert.Contains(t, out, "Dimensions: 640x480")
	assert.Contains(t, out, "Size: 2.0 kB")
	assert.Less(t, strings.Index(out, "CameraModel"), strings.Index(out, "DateTimeOriginal"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(info.ToJSON()), &decoded))
	assert.Equal(t, "image/png", decoded["type"])
	assert.Equal(t, "a.png", info.Name())
}
