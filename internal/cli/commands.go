package cli

import (
	"github.com/spf13/cobra"

	"tableside/internal/app"
	"tableside/internal/microservices/feed"
)

func NewOrderServiceCommand(opts *RootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "order-service",
		Short: "Serve the order API and follow the live feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Service.HTTPPort = port
			}
			return app.RunOrderService(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "http port (overrides service.http_port)")
	return cmd
}

func NewNotificationSubscriberCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notification-subscriber",
		Short: "Print alerts published by order services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return app.RunNotificationSubscriber(cmd.Context(), cfg)
		},
	}
}

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return app.RunMigrate(cmd.Context(), cfg)
		},
	}
}

func NewReportCommand(opts *RootOptions) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize paid orders for a period",
		Long: `Summarize paid orders for today, the last week or the last month.

Example:
  tableside report --period week`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := feed.ParsePeriod(period)
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return app.RunReport(cmd.Context(), cfg, p, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&period, "period", string(feed.PeriodToday), "today | week | month")
	return cmd
}
