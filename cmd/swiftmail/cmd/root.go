// Package cmd implements the swiftmail command.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/swiftmailer/swiftmailer-sub001/config"
)

type rootOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRoot returns the swiftmail command with all of its subcommands.
func NewRoot() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "swiftmail",
		Short:         "Build, send, and spool email messages",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			return opts.load(c)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overriding the configuration")

	root.AddCommand(newRenderCmd(opts))
	root.AddCommand(newSendCmd(opts))
	root.AddCommand(newFlushCmd(opts))
	root.AddCommand(newRoundtripCmd(opts))

	return root
}

// Execute runs the swiftmail command.
func Execute() error {
	return NewRoot().Execute()
}

func (o *rootOptions) load(c *cobra.Command) error {
	var err error
	if o.configPath != "" {
		o.cfg, err = config.LoadFromFile(o.configPath)
	} else {
		o.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if o.logLevel != "" {
		o.cfg.Log.Level = o.logLevel
	}

	o.logger, err = o.cfg.Logger(c.ErrOrStderr())
	return err
}
