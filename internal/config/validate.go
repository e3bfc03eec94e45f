package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBake(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateMesh(); err != nil {
		return err
	}
	if err := c.validatePack(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBake() error {
	if c.Bake.RenderHeight < minRenderHeight || c.Bake.RenderHeight > maxRenderHeight {
		return fmt.Errorf("bake.render_height must be between %d and %d", minRenderHeight, maxRenderHeight)
	}
	if c.Bake.AspectRatio <= 0 {
		return errors.New("bake.aspect_ratio must be positive")
	}
	if c.Bake.MaskHeight < minRenderHeight || c.Bake.MaskHeight > maxRenderHeight {
		return fmt.Errorf("bake.mask_height must be between %d and %d", minRenderHeight, maxRenderHeight)
	}
	if c.Bake.Padding < 0 {
		return errors.New("bake.padding must be non-negative")
	}
	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.StalePolicy {
	case StalePolicyError, StalePolicyReuse, StalePolicyRerender:
	default:
		return fmt.Errorf("render.stale_policy: unsupported value %q", c.Render.StalePolicy)
	}
	if c.Render.Ambient < 0 {
		return errors.New("render.ambient must be non-negative")
	}
	return nil
}

func (c *Config) validateMesh() error {
	if c.Mesh.MergeDistance < 0 {
		return errors.New("mesh.merge_distance must be non-negative")
	}
	if c.Mesh.DissolveAngle < 0 || c.Mesh.DissolveAngle >= 90 {
		return errors.New("mesh.dissolve_angle must be between 0 and 90 degrees")
	}
	if c.Mesh.BackfaceLimit < 0 {
		return errors.New("mesh.backface_limit must be non-negative")
	}
	if c.Mesh.SubdivideThreshold <= 0 {
		return errors.New("mesh.subdivide_threshold must be positive")
	}
	if c.Mesh.SubdividePasses < 0 {
		return errors.New("mesh.subdivide_passes must be non-negative")
	}
	if c.Mesh.LightmapThreshold < 0 || c.Mesh.LightmapThreshold >= 1 {
		return errors.New("mesh.lightmap_threshold must be between 0 and 1")
	}
	if c.Mesh.PruneResolution < 8 {
		return errors.New("mesh.prune_resolution must be at least 8")
	}
	return nil
}

func (c *Config) validatePack() error {
	if c.Pack.Padding < 0 {
		return errors.New("pack.padding must be non-negative")
	}
	if c.Pack.MaxSize < c.Bake.RenderHeight {
		return errors.New("pack.max_size must be at least bake.render_height")
	}
	if c.Pack.MaxSize > 16384 {
		return errors.New("pack.max_size must not exceed 16384")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
