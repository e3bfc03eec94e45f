package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/stage"
	"lightmapper/internal/workflow"
)

func newStageCommands(ctx *commandContext) []*cobra.Command {
	short := map[string]string{
		stage.Partition: "Split each bake group into non-overlapping partitions",
		stage.Render:    "Partition and render every situation into the cache",
		stage.Mesh:      "Run the stages up to the mesh optimizer",
		stage.Pack:      "Run the stages up to atlas packing",
	}
	var cmds []*cobra.Command
	for _, name := range []string{stage.Partition, stage.Render, stage.Mesh, stage.Pack} {
		cmds = append(cmds, newBatchCommand(ctx, name, short[name], name))
	}
	return cmds
}

func newBakeCommand(ctx *commandContext) *cobra.Command {
	return newBatchCommand(ctx, "bake", "Run the full pipeline and export the results", "")
}

func newBatchCommand(ctx *commandContext, use, short, until string) *cobra.Command {
	var groups []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   use + " <table>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, args[0], workflow.RunOptions{Until: until, Groups: groups}, asJSON)
		},
	}
	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "Restrict the run to these bake groups")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the batch report as JSON")
	return cmd
}

type batchReport struct {
	Batch   *batchstore.Batch     `json:"batch"`
	Runs    []batchstore.StageRun `json:"stage_runs"`
	Outputs []string              `json:"outputs,omitempty"`
}

func runBatch(cmd *cobra.Command, ctx *commandContext, tablePath string, opts workflow.RunOptions, asJSON bool) error {
	sc, err := ctx.loadTable(tablePath)
	if err != nil {
		return err
	}
	sess, err := ctx.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	set := workflow.DefaultStageSet(sess.cfg, sess.cache, hostrender.NewRasterizer(), sess.logger)
	manager := workflow.NewManager(sess.cfg, sess.batches, sess.logger, set)
	batch, runErr := manager.Run(cmd.Context(), sc, tablePath, opts)
	if batch == nil {
		return runErr
	}

	report := batchReport{Outputs: batch.Outputs}
	if report.Batch, err = sess.batches.Get(cmd.Context(), batch.ID); err != nil {
		return err
	}
	if report.Runs, err = sess.batches.StageRuns(cmd.Context(), batch.ID); err != nil {
		return err
	}
	if asJSON {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
		return runErr
	}
	printBatchReport(cmd, report)
	return runErr
}

func printBatchReport(cmd *cobra.Command, r batchReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Batch %s: %s\n", r.Batch.ID, r.Batch.Status)
	if r.Batch.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", r.Batch.ErrorMessage)
	}
	printStageRuns(cmd, r.Runs)
	if len(r.Outputs) > 0 {
		fmt.Fprintf(out, "Wrote %d files:\n", len(r.Outputs))
		for _, path := range r.Outputs {
			fmt.Fprintf(out, "  %s\n", path)
		}
	}
}

func printStageRuns(cmd *cobra.Command, runs []batchstore.StageRun) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		group := run.BakeGroup
		if group == "" {
			group = "(batch)"
		}
		elapsed := "-"
		if !run.FinishedAt.IsZero() {
			elapsed = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{group, run.Stage, string(run.Status), elapsed, formatCounters(run.Counters)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Group", "Stage", "Status", "Elapsed", "Counters"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func formatCounters(counters map[string]int) string {
	parts := make([]string, 0, len(counters))
	for _, k := range slices.Sorted(maps.Keys(counters)) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counters[k]))
	}
	return strings.Join(parts, " ")
}
