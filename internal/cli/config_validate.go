package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/recbatch/internal/config"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the effective configuration: the config file, the project overlay
and RECBATCH_* environment overrides, after merging.`,
		Example: `  # Validate current configuration
  recbatch config validate

  # Validate and show detailed information
  recbatch config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	storePath, err := cfg.StoreFile()
	if err != nil {
		storePath = fmt.Sprintf("(unresolved: %v)", err)
	}
	concurrency := "unbounded"
	if cfg.Batch.MaxConcurrency > 0 {
		concurrency = fmt.Sprintf("%d", cfg.Batch.MaxConcurrency)
	}

	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Max concurrency: %s\n", concurrency)
	cmd.Printf("  Simulated delay: %s\n", cfg.Batch.SimulatedDelay)
	cmd.Printf("  Persist retries: %d\n", cfg.Batch.PersistRetries)
	cmd.Printf("  Record store: %s\n", storePath)
	cmd.Printf("  Output format: %s\n", cfg.Output.DefaultFormat)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	if dir := config.GetResolvedProjectDir(); dir != "" {
		cmd.Printf("  Project directory: %s\n", dir)
	}
}
