package config

import "runtime"

const (
	defaultConfigPath         = "~/.config/lightmapper/config.toml"
	defaultStateDir           = "~/.local/share/lightmapper"
	defaultCacheDir           = "~/.cache/lightmapper/renders"
	defaultExportDir          = "./export"
	defaultLogDir             = "~/.local/share/lightmapper/logs"
	defaultRenderHeight       = 256
	defaultAspectRatio        = 1.0
	defaultMaskHeight         = 512
	defaultPadding            = 2
	defaultStalePolicy        = StalePolicyError
	defaultAmbient            = 0.25
	defaultMergeDistance      = 0.001
	defaultDissolveAngle      = 1.0
	defaultSubdivideThreshold = 0.1
	defaultSubdividePasses    = 8
	defaultLightmapThreshold  = 0.02
	defaultPruneResolution    = 256
	defaultPackPadding        = 2
	defaultPackMaxSize        = 8192
	defaultUVPackerTimeout    = 300
	defaultScriptName         = "lightmaps.vbs"
	defaultExportPrefix       = "LM"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	maxRenderHeight           = 8192
	minRenderHeight           = 16
)

// Stale cache policies.
const (
	StalePolicyError    = "error"
	StalePolicyReuse    = "reuse"
	StalePolicyRerender = "rerender"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			CacheDir:  defaultCacheDir,
			ExportDir: defaultExportDir,
			LogDir:    defaultLogDir,
		},
		Bake: Bake{
			RenderHeight: defaultRenderHeight,
			AspectRatio:  defaultAspectRatio,
			MaskHeight:   defaultMaskHeight,
			Padding:      defaultPadding,
			EnableAOI:    true,
		},
		Render: Render{
			Workers:     defaultWorkers(),
			StalePolicy: defaultStalePolicy,
			Ambient:     defaultAmbient,
		},
		Mesh: Mesh{
			MergeDistance:      defaultMergeDistance,
			DissolveAngle:      defaultDissolveAngle,
			SubdivideThreshold: defaultSubdivideThreshold,
			SubdividePasses:    defaultSubdividePasses,
			LightmapThreshold:  defaultLightmapThreshold,
			PruneResolution:    defaultPruneResolution,
		},
		Pack: Pack{
			Padding:         defaultPackPadding,
			MaxSize:         defaultPackMaxSize,
			UVPackerTimeout: defaultUVPackerTimeout,
		},
		Export: Export{
			SyncScript: true,
			ScriptName: defaultScriptName,
			Prefix:     defaultExportPrefix,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}
