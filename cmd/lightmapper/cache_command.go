package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"lightmapper/internal/logging"
	"lightmapper/internal/rendercache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the render cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheInvalidateCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show render cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(ctx, func(cache *rendercache.Store) error {
				stats, err := cache.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Root:    %s\n", cache.Root())
				fmt.Fprintf(out, "Entries: %d (%d skipped by area of influence)\n", stats.Entries, stats.Skipped)
				fmt.Fprintf(out, "Size:    %s\n", logging.FormatBytes(stats.TotalBytes))
				fmt.Fprintf(out, "Disk:    %s free (%.1f%%)\n", logging.FormatBytes(int64(stats.FreeBytes)), stats.FreeRatio*100)
				if len(stats.Groups) == 0 {
					fmt.Fprintln(out, "Cached groups: none")
					return nil
				}
				rows := make([][]string, 0, len(stats.Groups))
				for _, g := range slices.Sorted(maps.Keys(stats.Groups)) {
					rows = append(rows, []string{g, strconv.Itoa(stats.Groups[g])})
				}
				fmt.Fprintln(out, renderTable([]string{"Bake group", "Renders"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the stats as JSON")
	return cmd
}

func newCacheInvalidateCommand(ctx *commandContext) *cobra.Command {
	var filter rendercache.Filter
	var all bool
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Drop cached renders so the next batch renders them again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && filter == (rendercache.Filter{}) {
				return errors.New("select entries with --group/--situation or pass --all")
			}
			return withCache(ctx, func(cache *rendercache.Store) error {
				if err := cache.Lock(); err != nil {
					return err
				}
				defer cache.Unlock()
				n, err := cache.Invalidate(cmd.Context(), filter)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %d renders\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&filter.Group, "group", "g", "", "Bake group to invalidate")
	cmd.Flags().StringVarP(&filter.Situation, "situation", "s", "", "Situation to invalidate")
	cmd.Flags().BoolVar(&all, "all", false, "Invalidate every cached render")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove orphaned render files and dangling entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(ctx, func(cache *rendercache.Store) error {
				if err := cache.Lock(); err != nil {
					return err
				}
				defer cache.Unlock()
				removed, err := cache.Prune(cmd.Context())
				if err != nil {
					return err
				}
				if removed == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cache entries pruned")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d files and entries\n", removed)
				return nil
			})
		},
	}
}

func withCache(ctx *commandContext, fn func(*rendercache.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	cache, err := rendercache.Open(cfg, logging.NewComponentLogger(logger, "cli-cache"))
	if err != nil {
		return fmt.Errorf("open render cache: %w", err)
	}
	defer cache.Close()
	return fn(cache)
}
