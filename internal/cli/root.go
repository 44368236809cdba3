package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/recbatch/internal/config"
	"github.com/rshade/recbatch/internal/logging"
)

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the recbatch CLI.
// It loads .env and configuration, wires logging and tracing, and registers
// the process, records and config command groups.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:           "recbatch",
		Short:         "Concurrent batch processor for record stores",
		Long:          "recbatch: mark every record in a store as processed, concurrently, with one aggregate outcome per run",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfiguration(cmd); err != nil {
				return err
			}

			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return cleanupLogging(logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file (default $RECBATCH_HOME/config.yaml)")
	cmd.PersistentFlags().String("project-dir", "", "project directory holding .recbatch/config.yaml")
	cmd.PersistentFlags().String("env-file", "", "dotenv file to load (default .env in the working directory)")
	cmd.PersistentFlags().String("store", "", "record store file (overrides store.file)")

	cmd.AddCommand(NewProcessCmd(), newRecordsCmd(), newConfigCmd())

	return cmd
}

// loadConfiguration applies .env, --config and the project overlay, then
// installs the result as the global config.
func loadConfiguration(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
		config.SetConfigPath(cfgPath)
	}

	projectFlag, _ := cmd.Flags().GetString("project-dir")
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	projectDir := config.ResolveProjectDir(cmd.Context(), projectFlag, cwd)
	config.SetResolvedProjectDir(projectDir)

	cfg := config.NewWithProjectDir(cmd.Context(), projectDir)
	if store, _ := cmd.Flags().GetString("store"); store != "" {
		cfg.Store.File = store
	}
	config.SetGlobalConfig(cfg)
	return nil
}

const rootCmdExample = `  # Seed a store with 1000 records
  recbatch records seed --count 1000

  # Process every record, at most 32 at a time
  recbatch process --max-concurrency 32

  # Watch a run live
  recbatch process --tui

  # Emit the outcome as JSON
  recbatch process --output json

  # List processed records
  recbatch records list --sort name:desc --limit 20

  # Initialize configuration
  recbatch config init`

// newRecordsCmd creates the records command group.
func newRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "records", Short: "Record store commands"}
	cmd.AddCommand(NewRecordsListCmd(), NewRecordsSeedCmd(), NewRecordsDeleteCmd())
	return cmd
}

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigShowCmd(), NewConfigValidateCmd())
	return cmd
}
