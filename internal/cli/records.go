package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/recbatch/internal/cli/pagination"
	"github.com/rshade/recbatch/internal/config"
	"github.com/rshade/recbatch/internal/engine/batch"
	"github.com/rshade/recbatch/internal/logging"
	"github.com/rshade/recbatch/internal/record"
	"github.com/rshade/recbatch/internal/tui"
)

// seedStatus is the status given to freshly seeded records.
const seedStatus = "NEW"

// recordsPage is the JSON form of a records listing.
type recordsPage struct {
	Records    []record.Record `json:"records"`
	Pagination pagination.Meta `json:"pagination"`
}

// NewRecordsListCmd creates the records list command.
func NewRecordsListCmd() *cobra.Command {
	params := pagination.NewParams()
	var (
		status string
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records in the store",
		Example: `  # First 100 records by ID
  recbatch records list

  # Second page of 20 processed records, newest name first
  recbatch records list --status PROCESSED --page 2 --page-size 20 --sort name:desc`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := params.Validate(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("output") {
				output = config.GetGlobalConfig().Output.DefaultFormat
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			recs, err := store.List()
			if err != nil {
				return fmt.Errorf("listing records: %w", err)
			}

			if status != "" {
				recs = lo.Filter(recs, func(r record.Record, _ int) bool { return r.Status == status })
			}
			recs, err = pagination.SortRecords(recs, params.Sort)
			if err != nil {
				return err
			}
			meta := pagination.NewMeta(*params, len(recs))
			page := pagination.Apply(*params, recs)

			if output == config.FormatJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recordsPage{Records: page, Pagination: meta})
			}

			if err = renderRecords(cmd.OutOrStdout(), page); err != nil {
				return err
			}
			message.NewPrinter(language.English).Fprintf(cmd.OutOrStdout(),
				"\nShowing %d of %d records (page %d of %d)\n",
				len(page), meta.TotalItems, meta.CurrentPage, max(meta.TotalPages, 1))
			return nil
		},
	}

	cmd.Flags().IntVar(&params.Limit, "limit", pagination.DefaultLimit, "maximum records to show (0 = all)")
	cmd.Flags().IntVar(&params.Offset, "offset", 0, "records to skip")
	cmd.Flags().IntVar(&params.Page, "page", 0, "1-based page number (requires --page-size)")
	cmd.Flags().IntVar(&params.PageSize, "page-size", 0, "records per page")
	cmd.Flags().StringVar(&params.Sort, "sort", pagination.DefaultSortField,
		"sort as field[:asc|desc], fields: id, name, status, email")
	cmd.Flags().StringVar(&status, "status", "", "only show records with this status")
	cmd.Flags().StringVarP(&output, "output", "o", config.FormatTable, "output format: table or json")

	return cmd
}

// NewRecordsSeedCmd creates the records seed command.
func NewRecordsSeedCmd() *cobra.Command {
	var (
		count     int
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create sample records in the store",
		Example: `  # Create 1000 records in chunks of 250
  recbatch records seed --count 1000 --batch-size 250`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("count must be >= 1, got %d", count)
			}
			if !cmd.Flags().Changed("batch-size") {
				batchSize = config.GetGlobalConfig().Store.SeedBatchSize
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}

			created, err := seedRecords(cmd.Context(), store, count, batchSize)
			if err != nil {
				return err
			}
			message.NewPrinter(language.English).Fprintf(cmd.OutOrStdout(),
				"Created %d records in %s\n", created, store.FilePath())
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "number of records to create")
	cmd.Flags().IntVar(&batchSize, "batch-size", batch.DefaultChunkSize, "records written per store update")

	return cmd
}

// seedRecords creates count records, writing them batchSize at a time.
func seedRecords(ctx context.Context, store *record.FileStore, count, batchSize int) (int, error) {
	log := logging.FromContext(ctx)

	recs := lo.Times(count, func(i int) record.Record {
		return record.Record{
			Name:        fmt.Sprintf("record-%04d", i+1),
			Description: "seeded sample record",
			Status:      seedStatus,
			Email:       fmt.Sprintf("record-%d@example.com", i+1),
		}
	})

	created := 0
	err := batch.ProcessChunks(ctx, recs, batchSize, func(_ context.Context, chunk []record.Record, idx int) error {
		stored, err := store.Create(chunk...)
		if err != nil {
			return err
		}
		created += len(stored)
		log.Debug().Int("chunk", idx).Int("created", len(stored)).Msg("seed chunk written")
		return nil
	})
	if err != nil {
		return created, fmt.Errorf("seeding records: %w", err)
	}
	return created, nil
}

// NewRecordsDeleteCmd creates the records delete command.
func NewRecordsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete records from the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			if !yes {
				result := ConfirmDelete(cmd.OutOrStdout(), cmd.InOrStdin(), ids, tui.IsTTY())
				if !result.Accepted {
					return errors.New("delete cancelled, use --yes to skip the prompt")
				}
			}

			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err = store.Delete(id); err != nil {
					return fmt.Errorf("deleting record %d: %w", id, err)
				}
			}
			cmd.Printf("Deleted %d record(s)\n", len(ids))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not prompt for confirmation")

	return cmd
}

// parseIDs parses positive record IDs, dropping duplicates.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q", record.ErrInvalidID, arg)
		}
		ids = append(ids, id)
	}
	return lo.Uniq(ids), nil
}
