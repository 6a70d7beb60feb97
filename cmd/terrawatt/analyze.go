package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nirmalpoudel/terrawatt/internal/adapters/analysis"
	natsadapter "github.com/nirmalpoudel/terrawatt/internal/adapters/nats"
	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
	"github.com/nirmalpoudel/terrawatt/internal/core/ports"
	"github.com/nirmalpoudel/terrawatt/internal/core/usecases"
)

var (
	flagAreaKm2       float64
	flagProjectType   string
	flagPrice         float64
	flagLifetime      int
	flagDiscountRate  float64
	flagForce         bool
	flagSkipScreening bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <lat> <lon>",
	Short: "Run the full feasibility pipeline for a site",
	Long: `Runs protected-area screening as a pre-flight gate, then the four
analysis stages in order: site analysis, resource estimation, cost
evaluation and report generation. A flagged site aborts unless --force.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		point, err := parsePoint(args[0], args[1])
		if err != nil {
			return err
		}

		aoi := domain.AreaOfInterest{
			Coordinate:  point,
			AreaKm2:     flagAreaKm2,
			ProjectType: flagProjectType,
		}
		if err := aoi.Validate(); err != nil {
			return err
		}

		// Pre-flight gate. The check is advisory; --force proceeds anyway and
		// an unavailable check never blocks.
		if !flagSkipScreening {
			result := newScreener(0).Check(cmd.Context(), point)
			printScreening(result)
			if result.Outcome == domain.OutcomeFlagged && !flagForce {
				return fmt.Errorf("site overlaps protected areas; rerun with --force to analyze anyway")
			}
		}

		client := analysis.New(cfg.Analysis.BaseURL, cfg.Analysis.Token, cfg.Analysis.Timeout(), cfg.Retry.MaxRetries)

		var events ports.EventPublisher
		if cfg.NATS.Enabled {
			pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
			if err != nil {
				slog.Warn("nats unavailable, events disabled", "error", err)
			} else {
				defer pub.Close()
				events = pub
			}
		}

		svc := usecases.NewWorkflowService(client, nil, events)
		run := svc.Run(cmd.Context(), aoi, domain.FinancialParams{
			ElectricityPriceUSDMWh: flagPrice,
			ProjectLifetimeYears:   flagLifetime,
			DiscountRate:           flagDiscountRate,
		})

		printRun(run)
		if run.Status != domain.RunSucceeded {
			return fmt.Errorf("run failed at %s: %w", run.FailedAt, run.Err)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Float64Var(&flagAreaKm2, "area", 1.0, "site area in km²")
	analyzeCmd.Flags().StringVar(&flagProjectType, "type", "solar", "project type: solar, wind or hybrid")
	analyzeCmd.Flags().Float64Var(&flagPrice, "price", 0, "electricity price in USD/MWh (0 = service default)")
	analyzeCmd.Flags().IntVar(&flagLifetime, "lifetime", 0, "project lifetime in years (0 = service default)")
	analyzeCmd.Flags().Float64Var(&flagDiscountRate, "discount-rate", 0, "discount rate (0 = service default)")
	analyzeCmd.Flags().BoolVar(&flagForce, "force", false, "analyze even if the site is flagged as protected")
	analyzeCmd.Flags().BoolVar(&flagSkipScreening, "skip-screening", false, "skip the protected-area pre-flight check")
	rootCmd.AddCommand(analyzeCmd)
}

func printRun(run *domain.WorkflowRun) {
	fmt.Printf("\nRun %s: %s\n", run.ID, run.Status)
	for _, w := range run.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	if site := run.Results.Site; site != nil && site.EstimatedCapacityMW != nil {
		fmt.Printf("  estimated capacity:  %.1f MW\n", *site.EstimatedCapacityMW)
	}
	if res := run.Results.Resources; res != nil && res.AnnualGenerationGWh != nil {
		fmt.Printf("  annual generation:   %.1f GWh\n", *res.AnnualGenerationGWh)
	}
	if costs := run.Results.Costs; costs != nil && costs.Metrics != nil {
		m := costs.Metrics
		fmt.Printf("  net present value:   %.0f USD\n", m.NetPresentValueUSD)
		fmt.Printf("  internal rate:       %.1f %%\n", m.InternalRateOfReturn*100)
		fmt.Printf("  payback period:      %.1f years\n", m.PaybackPeriodYears)
	}
	if report := run.Results.Report; report != nil {
		fmt.Printf("\n%s\n", report.Content)
	}
}
