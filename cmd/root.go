package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dmv-price-tracker/internal/config"
	"github.com/sells-group/dmv-price-tracker/internal/pipeline"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dmv-tracker",
	Short: "DC/Fairfax listing ingestion pipeline",
	Long: "Fetches RentCast listings for the configured zip codes, combines them with parcel " +
		"geometry, and writes the dataset the map viewer reads.",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}

		p, cleanup := pipeline.Setup(cmd.Context(), cfg)
		defer cleanup()

		res, err := p.Run(cmd.Context())
		if err != nil {
			zap.L().Error("run failed", zap.Error(err))
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
