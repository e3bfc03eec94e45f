package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"lightmapper/internal/batchstore"
	"lightmapper/internal/config"
	"lightmapper/internal/importer"
	"lightmapper/internal/logging"
	"lightmapper/internal/rendercache"
	"lightmapper/internal/scene"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, levelFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		levelFlag:  levelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.levelFlag != nil && strings.TrimSpace(*c.levelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.levelFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// session bundles the stores a pipeline command needs.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	batches *batchstore.Store
	cache   *rendercache.Store
}

func (s *session) Close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.batches != nil {
		_ = s.batches.Close()
	}
}

func (c *commandContext) openSession() (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	batches, err := batchstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open batch store: %w", err)
	}
	cache, err := rendercache.Open(cfg, logger)
	if err != nil {
		_ = batches.Close()
		return nil, fmt.Errorf("open render cache: %w", err)
	}
	return &session{cfg: cfg, logger: logger, batches: batches, cache: cache}, nil
}

// loadTable reads a table description into a fresh scene store.
func (c *commandContext) loadTable(path string) (*scene.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	store := scene.NewStore()
	if _, err := importer.Into(store, expanded, importer.OptionsFromConfig(cfg)); err != nil {
		return nil, err
	}
	return store, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
