package config

const (
	defaultWorkDir               = "~/.local/share/captionstudio/work"
	defaultLogDir                = "~/.local/share/captionstudio/logs"
	defaultCacheDir              = "~/.cache/captionstudio"
	defaultDataDir               = "~/.local/share/captionstudio"
	defaultASRBackend            = "whisperx"
	defaultASRModel              = "tiny.en"
	defaultASRLanguage           = "english"
	defaultASRAlternateLanguage  = "hindi"
	defaultASRAPIURL             = "https://api.openai.com/v1/audio/transcriptions"
	defaultChunkSeconds          = 15
	defaultStrideSeconds         = 2
	defaultRetryChunkSeconds     = 30
	defaultRetryStrideSeconds    = 5
	defaultExtractTimeoutSeconds = 10
	defaultRequestTimeoutSeconds = 600
	defaultExportFrameRate       = 30
	defaultExportMaxSeconds      = 120
	defaultStallTimeoutSeconds   = 10
	defaultVideoCodec            = "libvpx-vp9"
	defaultAudioCodec            = "libopus"
	defaultContainer             = "webm"
	defaultMimeType              = "video/webm"
	defaultPreviewWidth          = 1920
	defaultPreviewHeight         = 1080
	defaultPreviewFrameRate      = 30
	defaultPreviewMaxSeconds     = 20
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultMaintenanceSchedule   = "@daily"
	defaultArtifactRetentionDays = 7

	// HardExportCapSeconds bounds every export regardless of configuration.
	HardExportCapSeconds = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			LogDir:   defaultLogDir,
			CacheDir: defaultCacheDir,
			DataDir:  defaultDataDir,
		},
		ASR: ASR{
			Backend:               defaultASRBackend,
			Model:                 defaultASRModel,
			Language:              defaultASRLanguage,
			AlternateLanguage:     defaultASRAlternateLanguage,
			APIURL:                defaultASRAPIURL,
			ChunkSeconds:          defaultChunkSeconds,
			StrideSeconds:         defaultStrideSeconds,
			RetryChunkSeconds:     defaultRetryChunkSeconds,
			RetryStrideSeconds:    defaultRetryStrideSeconds,
			ExtractTimeoutSeconds: defaultExtractTimeoutSeconds,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			CacheEnabled:          true,
		},
		Export: Export{
			FrameRate:           defaultExportFrameRate,
			MaxSeconds:          defaultExportMaxSeconds,
			StallTimeoutSeconds: defaultStallTimeoutSeconds,
			VideoCodec:          defaultVideoCodec,
			AudioCodec:          defaultAudioCodec,
			Container:           defaultContainer,
			MimeType:            defaultMimeType,
		},
		Preview: Preview{
			Width:      defaultPreviewWidth,
			Height:     defaultPreviewHeight,
			FrameRate:  defaultPreviewFrameRate,
			MaxSeconds: defaultPreviewMaxSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Maintenance: Maintenance{
			Schedule:              defaultMaintenanceSchedule,
			ArtifactRetentionDays: defaultArtifactRetentionDays,
		},
	}
}
