// Package gui is the fyne front end of the slideshow.
package gui

import (
	"slideview/internal/config"
)

// Interface defines the contract for GUI operations
type Interface interface {
	// Run opens dir, when not empty, and blocks until the window closes
	Run(dir string) error
	ShowError(err error)
}

// Factory creates GUI instances
type Factory struct {
	config *config.Config
}

// NewFactory creates a new GUI factory
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{config: cfg}
}

// Create returns a new GUI instance
func (f *Factory) Create() (Interface, error) {
	return newInterface(f.config)
}
