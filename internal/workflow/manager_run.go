package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/logging"
	"lightmapper/internal/scene"
	"lightmapper/internal/services"
	"lightmapper/internal/stage"
)

// aspectTolerance bounds the difference between the scene camera aspect
// and the configured render aspect.
const aspectTolerance = 1e-3

// Run bakes one table. Every selected bake group goes through the group
// stages in order, then the batch-scoped stages run once. The returned
// batch holds the intermediate results even when a stage fails.
func (m *Manager) Run(ctx context.Context, sc *scene.Store, tablePath string, opts RunOptions) (*stage.Batch, error) {
	if sc == nil {
		return nil, errors.New("scene is required")
	}
	stages, err := m.stagesUntil(opts.Until)
	if err != nil {
		return nil, err
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	record, err := m.store.NewBatch(ctx, tablePath)
	if err != nil {
		m.setLastError(err)
		return nil, fmt.Errorf("create batch: %w", err)
	}
	ctx = services.WithBatchID(ctx, record.ID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(m.logger, "workflow-manager"))

	batch := &stage.Batch{
		ID:         record.ID,
		TablePath:  tablePath,
		Scene:      sc,
		Situations: sc.Situations(),
	}
	groups, err := m.validate(sc, opts.Groups, logger)
	if err != nil {
		return batch, m.failBatch(ctx, logger, batch.ID, "", err)
	}
	for _, g := range groups {
		batch.Jobs = append(batch.Jobs, stage.NewJob(batch, g, sc.Members(g.Name)))
	}

	start := time.Now()
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.String("table", tablePath),
		logging.Int("bake_groups", len(batch.Jobs)),
		logging.Int("situations", len(batch.Situations)),
		logging.String("until", stages[len(stages)-1].name),
	)

	for _, job := range batch.Jobs {
		for _, stg := range stages {
			if stg.batchScoped {
				continue
			}
			if err := m.runStage(ctx, stg, job); err != nil {
				return batch, m.failBatch(ctx, logger, batch.ID, stg.name, err)
			}
		}
	}
	for _, stg := range stages {
		if !stg.batchScoped {
			continue
		}
		job := stage.NewJob(batch, scene.BakeGroup{}, nil)
		if err := m.runStage(ctx, stg, job); err != nil {
			return batch, m.failBatch(ctx, logger, batch.ID, stg.name, err)
		}
	}

	if err := m.store.SetStatus(ctx, batch.ID, batchstore.StatusCompleted, "", ""); err != nil {
		m.setLastError(err)
		return batch, fmt.Errorf("persist batch completion: %w", err)
	}
	m.refreshLastBatch(ctx, batch.ID)
	logger.Info("batch completed",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Duration("batch_duration", time.Since(start)),
		logging.Int("outputs", len(batch.Outputs)),
	)
	return batch, nil
}

// stagesUntil returns the registered stages up to and including until.
func (m *Manager) stagesUntil(until string) ([]pipelineStage, error) {
	if len(m.stages) == 0 {
		return nil, errors.New("workflow stages not configured")
	}
	if until == "" {
		return m.stages, nil
	}
	for i, stg := range m.stages {
		if stg.name == until {
			return m.stages[:i+1], nil
		}
	}
	return nil, services.Wrap(services.ErrConfiguration, "workflow", "until",
		fmt.Sprintf("unknown stage %q (want one of %s)", until, strings.Join(stage.Names, ", ")), nil)
}

// validate checks the scene against the configuration and resolves the
// bake groups to run.
func (m *Manager) validate(sc *scene.Store, filter []string, logger *slog.Logger) ([]scene.BakeGroup, error) {
	cam := sc.Camera()
	if math.Abs(float64(cam.Aspect)-m.cfg.Bake.AspectRatio) > aspectTolerance {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "camera",
			fmt.Sprintf("camera aspect %.4f does not match bake.aspect_ratio %.4f", cam.Aspect, m.cfg.Bake.AspectRatio), nil)
	}

	all := sc.BakeGroups()
	if len(all) == 0 {
		return nil, services.Wrap(services.ErrValidation, "workflow", "bake groups", "table defines no bake groups", nil)
	}
	groups := all
	if len(filter) > 0 {
		groups = nil
		for _, name := range filter {
			idx := slices.IndexFunc(all, func(g scene.BakeGroup) bool { return g.Name == name })
			if idx < 0 {
				return nil, services.Wrap(services.ErrNotFound, "workflow", "bake groups", fmt.Sprintf("unknown bake group %q", name), nil)
			}
			groups = append(groups, all[idx])
		}
	}

	if loose := sc.UnassignedLights(); len(loose) > 0 {
		names := make([]string, 0, len(loose))
		for _, obj := range loose {
			names = append(names, obj.Name)
		}
		logging.WarnWithContext(logger, "lights without a light group", "unassigned_lights",
			logging.String("lights", strings.Join(names, ", ")),
			logging.String(logging.FieldImpact, "the lights are active in every situation"),
			logging.String(logging.FieldErrorHint, "assign the lights to a light group"),
		)
	}
	return groups, nil
}

func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	m.running = true
	m.lastErr = nil
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}
