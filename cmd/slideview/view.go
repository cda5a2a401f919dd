package main

import (
	"slideview/internal/gui"

	"github.com/spf13/cobra"
)

// NewViewCmd creates the command that opens the slideshow window
func NewViewCmd(opts *rootOptions) *cobra.Command {
	var fullscreen, shuffle, autoplay bool
	var interval int

	cmd := &cobra.Command{
		Use:   "view [directory]",
		Short: "Show the images of a folder as a slideshow",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("fullscreen") {
				opts.cfg.Display.Fullscreen = fullscreen
			}
			if flags.Changed("shuffle") {
				opts.cfg.Slideshow.Shuffle = shuffle
			}
			if flags.Changed("autoplay") {
				opts.cfg.Slideshow.Autoplay = autoplay
			}
			if flags.Changed("interval") {
				opts.cfg.Slideshow.IntervalMS = interval
				if err := opts.cfg.Validate(); err != nil {
					return err
				}
			}

			ui, err := gui.NewFactory(opts.cfg).Create()
			if err != nil {
				return err
			}
			return ui.Run(opts.targetDir(args))
		},
	}

	cmd.Flags().BoolVarP(&fullscreen, "fullscreen", "f", false, "start in fullscreen")
	cmd.Flags().BoolVarP(&shuffle, "shuffle", "s", false, "shuffle the images")
	cmd.Flags().BoolVarP(&autoplay, "autoplay", "p", false, "start the slideshow immediately")
	cmd.Flags().IntVarP(&interval, "interval", "i", 3000, "autoplay interval in milliseconds")

	return cmd
}
