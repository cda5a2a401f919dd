//go:build nogui
// +build nogui

package gui

import (
	"fmt"

	"slideview/internal/config"
)

// IsGUIAvailable returns whether the GUI is available in this build
func IsGUIAvailable() bool {
	return false
}

func newInterface(*config.Config) (Interface, error) {
	return nil, fmt.Errorf("GUI is disabled in this build, rebuild without the nogui tag")
}
