package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRender()
	if err := c.normalizePack(); err != nil {
		return err
	}
	c.normalizeExport()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() {
	c.Render.StalePolicy = strings.ToLower(strings.TrimSpace(c.Render.StalePolicy))
	if c.Render.StalePolicy == "" {
		c.Render.StalePolicy = defaultStalePolicy
	}
	if c.Render.Workers <= 0 {
		c.Render.Workers = defaultWorkers()
	}
}

func (c *Config) normalizePack() error {
	if c.Pack.UVPackerPath == "" {
		if value, ok := os.LookupEnv("LIGHTMAPPER_UVPACKER"); ok {
			c.Pack.UVPackerPath = strings.TrimSpace(value)
		}
	}
	if c.Pack.UVPackerPath != "" {
		var err error
		if c.Pack.UVPackerPath, err = expandPath(c.Pack.UVPackerPath); err != nil {
			return fmt.Errorf("pack.uvpacker_path: %w", err)
		}
	}
	if c.Pack.UVPackerTimeout <= 0 {
		c.Pack.UVPackerTimeout = defaultUVPackerTimeout
	}
	return nil
}

func (c *Config) normalizeExport() {
	c.Export.ScriptName = strings.TrimSpace(c.Export.ScriptName)
	if c.Export.ScriptName == "" {
		c.Export.ScriptName = defaultScriptName
	}
	c.Export.Prefix = strings.TrimSpace(c.Export.Prefix)
	if c.Export.Prefix == "" {
		c.Export.Prefix = defaultExportPrefix
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
