package cli

import (
	"github.com/spf13/cobra"

	"tableside/internal/common/logger"
	"tableside/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// load resolves the configuration and applies the log level.
func (o *RootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "tableside",
		Short:         "Table-side ordering service",
		Long:          "Patron checkout, table transfers and the live staff order feed.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config (default: search for config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug | info | warn | error")

	cmd.AddCommand(NewOrderServiceCommand(opts))
	cmd.AddCommand(NewNotificationSubscriberCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	return cmd
}
