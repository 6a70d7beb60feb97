package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nirmalpoudel/terrawatt/internal/adapters/analysis"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the remote analysis service status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := analysis.New(cfg.Analysis.BaseURL, cfg.Analysis.Token, cfg.Analysis.Timeout(), cfg.Retry.MaxRetries)
		status, err := client.SystemStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("system status: %w", err)
		}

		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
