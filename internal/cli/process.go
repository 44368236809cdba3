package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/recbatch/internal/config"
	"github.com/rshade/recbatch/internal/engine"
	"github.com/rshade/recbatch/internal/engine/batch"
	"github.com/rshade/recbatch/internal/logging"
	"github.com/rshade/recbatch/internal/record"
	"github.com/rshade/recbatch/internal/tui"
)

// ProcessOptions holds the resolved options of a process invocation.
type ProcessOptions struct {
	Settings    batchSettings
	Format      string
	Interactive bool
	ForceColor  bool
	NoColor     bool
}

// NewProcessCmd creates the process command, which runs one batch over the store.
func NewProcessCmd() *cobra.Command {
	var (
		maxConcurrency int
		unitTimeout    time.Duration
		batchTimeout   time.Duration
		delay          time.Duration
		retries        int
		output         string
		interactive    bool
		noColor        bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Mark every record in the store as processed",
		Long: `Runs one batch: enumerates every record identifier in the store, processes each
record concurrently (fetch, mark PROCESSED, persist) and reports a single outcome.

A record deleted before its unit runs is skipped. Any other unit failure does not
stop its siblings; once every unit has finished the command reports all failed
record IDs with their causes and exits with status 2.`,
		Example: `  # Process with unbounded concurrency
  recbatch process

  # Bound concurrency and fail units that take longer than 2s
  recbatch process --max-concurrency 16 --unit-timeout 2s

  # Live progress view
  recbatch process --tui`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			opts := ProcessOptions{
				Settings:    settingsFromConfig(cfg.Batch),
				Format:      cfg.Output.DefaultFormat,
				Interactive: interactive,
				ForceColor:  cfg.Output.Color == "always",
				NoColor:     noColor || cfg.Output.Color == "never",
			}

			flags := cmd.Flags()
			if flags.Changed("max-concurrency") {
				opts.Settings.MaxConcurrency = maxConcurrency
			}
			if flags.Changed("unit-timeout") {
				opts.Settings.UnitTimeout = unitTimeout
			}
			if flags.Changed("batch-timeout") {
				opts.Settings.BatchTimeout = batchTimeout
			}
			if flags.Changed("delay") {
				opts.Settings.SimulatedDelay = delay
			}
			if flags.Changed("retries") {
				opts.Settings.PersistRetries = retries
			}
			if flags.Changed("output") {
				opts.Format = output
			}

			return runProcess(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&maxConcurrency, "max-concurrency", 0, "maximum in-flight units (0 = unbounded)")
	cmd.Flags().DurationVar(&unitTimeout, "unit-timeout", 0, "per-unit deadline (0 = none)")
	cmd.Flags().DurationVar(&batchTimeout, "batch-timeout", 0, "whole-run deadline (0 = none)")
	cmd.Flags().DurationVar(&delay, "delay", config.DefaultSimulatedDelay, "simulated I/O delay per unit")
	cmd.Flags().IntVar(&retries, "retries", 0, "extra attempts for units that fail to persist")
	cmd.Flags().StringVarP(&output, "output", "o", config.FormatTable, "output format: table or json")
	cmd.Flags().BoolVar(&interactive, "tui", false, "show a live progress view (requires a terminal)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	return cmd
}

// runProcess executes one batch run and renders its outcome. A run with unit
// failures returns the outcome's *engine.AggregateError.
func runProcess(cmd *cobra.Command, opts ProcessOptions) error {
	ctx := cmd.Context()
	log := logging.FromContext(ctx)

	if opts.Format != config.FormatTable && opts.Format != config.FormatJSON {
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}

	mode := tui.DetectOutputMode(opts.ForceColor, opts.NoColor, opts.Interactive && opts.Format == config.FormatTable)
	log.Debug().
		Str("output_mode", mode.String()).
		Int("max_concurrency", opts.Settings.MaxConcurrency).
		Msg("starting batch")

	var (
		out      *engine.Outcome
		rendered bool
	)
	if mode == tui.OutputModeInteractive {
		out, rendered, err = runInteractiveProcess(ctx, store, opts.Settings)
	} else {
		var coord *engine.Coordinator
		coord, err = newCoordinator(store, opts.Settings, nil)
		if err != nil {
			return err
		}
		out, err = coord.Run(ctx)
	}
	if out == nil {
		return err
	}

	if !rendered {
		if renderErr := renderOutcome(cmd.OutOrStdout(), opts.Format, mode, out); renderErr != nil {
			return renderErr
		}
	}
	return out.Err
}

// runInteractiveProcess runs the batch behind a Bubble Tea progress view.
// rendered is false when the user detached before the run finished.
func runInteractiveProcess(
	ctx context.Context,
	store record.Store,
	settings batchSettings,
) (*engine.Outcome, bool, error) {
	program := tea.NewProgram(tui.NewBatchModel(), tea.WithContext(ctx))

	coord, err := newCoordinator(store, settings, func(snap batch.ProgressSnapshot) {
		program.Send(tui.BatchProgressMsg{Snapshot: snap})
	})
	if err != nil {
		return nil, false, err
	}

	h := coord.RunBatch(ctx)
	go func() {
		program.Send(tui.BatchStartedMsg{RunID: h.RunID()})
		<-h.Done()
		out, _ := h.Outcome()
		program.Send(tui.BatchFinishedMsg{Outcome: out})
	}()

	final, runErr := program.Run()
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return nil, false, fmt.Errorf("failed to run interactive TUI: %w", runErr)
	}

	rendered := false
	if m, ok := final.(tui.BatchModel); ok {
		rendered = m.Outcome() != nil
	}

	out, err := h.Wait(ctx)
	return out, rendered, err
}
