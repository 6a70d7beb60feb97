package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nirmalpoudel/terrawatt/internal/adapters/overpass"
	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
	"github.com/nirmalpoudel/terrawatt/internal/core/usecases"
)

var flagRadiusKm float64

var screenCmd = &cobra.Command{
	Use:   "screen <lat> <lon>",
	Short: "Check a coordinate for overlap with protected areas",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		point, err := parsePoint(args[0], args[1])
		if err != nil {
			return err
		}

		screener := newScreener(flagRadiusKm)
		result := screener.Check(cmd.Context(), point)
		printScreening(result)
		return nil
	},
}

func init() {
	screenCmd.Flags().Float64Var(&flagRadiusKm, "radius-km", 0, "proximity search radius (default from config)")
	rootCmd.AddCommand(screenCmd)
}

func newScreener(radiusKm float64) *usecases.ScreeningService {
	if radiusKm <= 0 {
		radiusKm = cfg.Overpass.RadiusKm
	}
	geo := overpass.New(cfg.Overpass.URL, cfg.Overpass.Timeout(), cfg.Retry.MaxRetries)
	return usecases.NewScreeningService(geo, radiusKm)
}

func parsePoint(latArg, lonArg string) (domain.GeoPoint, error) {
	lat, err := strconv.ParseFloat(latArg, 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("parse latitude %q: %w", latArg, err)
	}
	lon, err := strconv.ParseFloat(lonArg, 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("parse longitude %q: %w", lonArg, err)
	}
	return domain.GeoPoint{Lat: lat, Lon: lon}, nil
}

func printScreening(result domain.ScreeningResult) {
	switch result.Outcome {
	case domain.OutcomeFlagged:
		fmt.Printf("FLAGGED: %d protected area(s) found:\n", len(result.Names))
		for _, name := range result.Names {
			fmt.Printf("  - %s\n", name)
		}
	case domain.OutcomeClear:
		fmt.Println("CLEAR: no protected areas found")
	default:
		fmt.Println("UNAVAILABLE: protected-area check could not be performed")
	}
}
