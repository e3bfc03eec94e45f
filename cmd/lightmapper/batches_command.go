package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lightmapper/internal/batchstore"
)

func newBatchesCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List recent bake batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBatchStore(ctx, func(store *batchstore.Store) error {
				batches, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, batches)
				}
				printBatches(cmd, batches)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of batches to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the batches as JSON")

	cmd.AddCommand(newBatchShowCommand(ctx))
	cmd.AddCommand(newBatchPruneCommand(ctx))
	return cmd
}

func newBatchShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show the stage runs of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBatchStore(ctx, func(store *batchstore.Store) error {
				batch, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				runs, err := store.StageRuns(cmd.Context(), batch.ID)
				if err != nil {
					return err
				}
				report := batchReport{Batch: batch, Runs: runs}
				if asJSON {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Table:    %s\n", batch.TablePath)
				fmt.Fprintf(out, "Duration: %s\n", batch.Duration(time.Now()).Round(time.Millisecond))
				printBatchReport(cmd, report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the batch as JSON")
	return cmd
}

func newBatchPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove finished batches from the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBatchStore(ctx, func(store *batchstore.Store) error {
				n, err := store.Remove(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d batches\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Only remove batches finished before this age")
	return cmd
}

func withBatchStore(ctx *commandContext, fn func(*batchstore.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := batchstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open batch store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func printBatches(cmd *cobra.Command, batches []*batchstore.Batch) {
	out := cmd.OutOrStdout()
	if len(batches) == 0 {
		fmt.Fprintln(out, "No batches recorded")
		return
	}
	const stampLayout = "2006-01-02 15:04"
	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		rows = append(rows, []string{
			b.ID,
			b.CreatedAt.Local().Format(stampLayout),
			string(b.Status),
			b.Stage,
			b.Duration(time.Now()).Round(time.Second).String(),
			b.TablePath,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Created", "Status", "Stage", "Duration", "Table"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}
