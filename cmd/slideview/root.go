package main

import (
	"fmt"

	"slideview/internal/config"
	"slideview/internal/log"

	"github.com/spf13/cobra"
)

// rootOptions carries the persistent flags and the configuration they load
type rootOptions struct {
	cfgFile string
	debug   bool
	jsonLog bool
	cfg     *config.Config
}

// configPath returns the --config value or the default location
func (o *rootOptions) configPath() (string, error) {
	if o.cfgFile != "" {
		return o.cfgFile, nil
	}
	return config.DefaultPath()
}

// NewRootCmd creates the root command. Without a subcommand it starts the
// slideshow, like view.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	view := NewViewCmd(opts)

	rootCmd := &cobra.Command{
		Use:     "slideview [directory]",
		Short:   "A slideshow image viewer",
		Long:    `Slideview shows the images of a folder one at a time, with autoplay, shuffle, zoom and rotation.`,
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		RunE:          view.RunE,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.config/slideview/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonLog, "json-log", false, "write logs as JSON lines")

	rootCmd.AddCommand(view)
	rootCmd.AddCommand(NewScanCmd(opts))
	rootCmd.AddCommand(NewConfigCmd(opts))

	return rootCmd
}

// load reads the configuration and sets up logging
func (o *rootOptions) load(cmd *cobra.Command) error {
	path, err := o.configPath()
	if err != nil {
		return fmt.Errorf("cannot locate config file: %w", err)
	}
	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		return err
	}
	o.cfg = cfg

	logOpts := []log.Option{
		log.WithOutput(cmd.ErrOrStderr()),
		log.WithLevel(cfg.Logging.Level),
	}
	if o.jsonLog || cfg.Logging.JSON {
		logOpts = append(logOpts, log.WithJSON())
	}
	if cfg.Logging.File != "" {
		logOpts = append(logOpts, log.WithFile(cfg.Logging.File))
	}
	if o.debug {
		logOpts = append(logOpts, log.WithLevel("debug"))
	}
	log.Configure(logOpts...)
	log.SetDebug(o.debug || cfg.Logging.Level == "debug")

	log.LogWithFields(log.F("config", path)).Debug("Configuration loaded")
	return nil
}

// targetDir picks the folder argument or the configured default
func (o *rootOptions) targetDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return o.cfg.Directories.Default
}
