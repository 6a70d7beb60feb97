package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nirmalpoudel/terrawatt/internal/pkg/config"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/logging"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/metrics"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/telemetry"
)

var (
	cfg           *config.Config
	stopTelemetry func()
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "terrawatt",
	Short: "Renewable-energy site feasibility toolkit",
	Long: `terrawatt screens coordinates against environmentally protected land
(OpenStreetMap) and runs a multi-stage feasibility analysis (site
suitability, resource yield, financial evaluation, report) against a
remote analysis service.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load("terrawatt")
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if flagLogLevel != "" {
			level = flagLogLevel
		}
		logging.Setup("terrawatt", level, cfg.Logging.Format)

		if cfg.Telemetry.Enabled {
			shutdown, err := telemetry.InitTracer(context.Background(), cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
			if err != nil {
				slog.Warn("telemetry init failed", "error", err)
			} else {
				stopTelemetry = shutdown
			}
		}

		if cfg.Metrics.Addr != "" {
			metrics.Serve(cfg.Metrics.Addr)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopTelemetry != nil {
			stopTelemetry()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override configured log level (debug, info, warn, error)")
}
