package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/docket/internal/api"
	"github.com/JaimeStill/docket/internal/ingest"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <job-id>",
		Short: "Create tasks from a validated import job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDomain(func(d *api.Domain) error {
				result, err := d.Ingest.CreateTasksFromJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return ctx.render(cmd, result, func(w io.Writer, _ bool) error {
					fmt.Fprintf(w, "job %s: %d rows, %d created, %d skipped\n",
						result.JobID, result.TotalRows, result.Created, result.Skipped)
					if len(result.SkipReasons) == 0 {
						return nil
					}
					_, err := fmt.Fprint(w, renderTable(
						[]string{"Skip reason", "Rows"},
						skipReasonRows(result.SkipReasons),
						[]columnAlignment{alignLeft, alignRight},
					))
					return err
				})
			})
		},
	}
}

func skipReasonRows(reasons map[string]int) [][]string {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(reasons[k])})
	}
	return rows
}

func newStageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <job-id> <file>",
		Short: "Upload a job document to blob storage for the blob row source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.open(); err != nil {
				return err
			}
			if ctx.infra.Storage == nil {
				return errors.New("blob storage is not configured")
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			source := ingest.NewBlobSource(ctx.infra.Storage, ctx.config.Ingest.BlobPrefix)
			key := source.JobKey(args[0])

			if err := ctx.infra.Storage.Upload(cmd.Context(), key, f, "application/json"); err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}

			exists, err := ctx.infra.Storage.Exists(cmd.Context(), key)
			if err != nil {
				return err
			}

			status := map[string]any{"job_id": args[0], "key": key, "exists": exists}
			return ctx.render(cmd, status, func(w io.Writer, _ bool) error {
				_, err := fmt.Fprintf(w, "staged %s at %s\n", args[0], key)
				return err
			})
		},
	}
}
