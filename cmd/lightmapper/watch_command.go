package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"lightmapper/internal/config"
	"lightmapper/internal/hostrender"
	"lightmapper/internal/importer"
	"lightmapper/internal/logging"
	"lightmapper/internal/scene"
	"lightmapper/internal/workflow"
)

const watchDebounce = 300 * time.Millisecond

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var bake bool
	cmd := &cobra.Command{
		Use:   "watch <table>",
		Short: "Invalidate cached renders when the table description changes",
		Long: "Watch re-imports the table on every save, keeps locked attributes, and drops the cached " +
			"renders of the bake groups whose objects changed. Changed lights clear the whole cache.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			sess, err := ctx.openSession()
			if err != nil {
				return err
			}
			defer sess.Close()

			w := &tableWatcher{
				path:   path,
				store:  scene.NewStore(),
				sess:   sess,
				bake:   bake,
				out:    cmd.OutOrStdout(),
				logger: logging.NewComponentLogger(sess.logger, "watch"),
			}
			if _, err := importer.Into(w.store, path, importer.OptionsFromConfig(sess.cfg)); err != nil {
				return err
			}
			fmt.Fprintf(w.out, "Watching %s (Ctrl+C to stop)\n", path)
			return w.run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&bake, "bake", false, "Run a full batch after every change")
	return cmd
}

type tableWatcher struct {
	path   string
	store  *scene.Store
	sess   *session
	bake   bool
	out    io.Writer
	logger *slog.Logger
}

// run watches the table directory rather than the file so editors that
// save by renaming a temp file are still seen.
func (w *tableWatcher) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				pending = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Error(err))
		case <-pending:
			pending = nil
			if err := w.reload(ctx); err != nil {
				logging.WarnWithContext(w.logger, "table reload failed", "watch_reload_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "cached renders were left untouched"),
					logging.String(logging.FieldErrorHint, "fix the table description and save again"),
				)
			}
		}
	}
}

// reload merges the table into the watched store and invalidates the
// renders of every changed object.
func (w *tableWatcher) reload(ctx context.Context) error {
	_, changes, err := importer.Reload(w.store, w.path, importer.OptionsFromConfig(w.sess.cfg))
	if err != nil {
		return err
	}
	if len(changes.IDs) == 0 {
		fmt.Fprintln(w.out, "Table saved without bake-relevant changes")
		return nil
	}
	if err := w.sess.cache.Lock(); err != nil {
		return err
	}
	n, err := w.sess.cache.InvalidateObjects(ctx, changes, changes.IDs)
	if uerr := w.sess.cache.Unlock(); uerr != nil {
		w.logger.Warn("render cache unlock failed", logging.Error(uerr))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w.out, "Changed: %s; invalidated %d renders\n", strings.Join(changes.IDs, ", "), n)
	w.logger.Info("table reloaded",
		logging.String(logging.FieldEventType, "table_reloaded"),
		logging.Int("changed_objects", len(changes.IDs)),
		logging.Int("invalidated", n),
	)
	if !w.bake {
		return nil
	}
	sc, err := w.store.Snapshot()
	if err != nil {
		return err
	}
	set := workflow.DefaultStageSet(w.sess.cfg, w.sess.cache, hostrender.NewRasterizer(), w.sess.logger)
	batch, err := workflow.NewManager(w.sess.cfg, w.sess.batches, w.sess.logger, set).Run(ctx, sc, w.path, workflow.RunOptions{})
	if err != nil {
		return err
	}
	fmt.Fprintf(w.out, "Batch %s completed, wrote %d files\n", batch.ID, len(batch.Outputs))
	return nil
}
