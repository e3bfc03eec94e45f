// Package config loads, normalizes, and validates lightmapper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LIGHTMAPPER_UVPACKER. The Config type centralizes every knob the bake
// pipeline and CLI need, so render resolution, mesh optimization tolerances,
// and atlas packing limits are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
