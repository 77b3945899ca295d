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
	if err := c.normalizeASR(); err != nil {
		return err
	}
	c.normalizeExport()
	c.normalizePreview()
	c.normalizeLogging()
	c.normalizeMaintenance()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.cache_dir", &c.Paths.CacheDir, defaultCacheDir},
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeASR() error {
	c.ASR.Backend = strings.ToLower(strings.TrimSpace(c.ASR.Backend))
	if c.ASR.Backend == "" {
		c.ASR.Backend = defaultASRBackend
	}
	c.ASR.Model = strings.TrimSpace(c.ASR.Model)
	if c.ASR.Model == "" {
		c.ASR.Model = defaultASRModel
	}
	c.ASR.Language = strings.ToLower(strings.TrimSpace(c.ASR.Language))
	c.ASR.AlternateLanguage = strings.ToLower(strings.TrimSpace(c.ASR.AlternateLanguage))
	c.ASR.APIURL = strings.TrimSpace(c.ASR.APIURL)
	if c.ASR.APIURL == "" {
		c.ASR.APIURL = defaultASRAPIURL
	}
	c.ASR.APIKey = strings.TrimSpace(c.ASR.APIKey)
	if c.ASR.APIKey == "" {
		for _, env := range []string{"CAPTIONSTUDIO_ASR_API_KEY", "OPENAI_API_KEY"} {
			if value, ok := os.LookupEnv(env); ok && strings.TrimSpace(value) != "" {
				c.ASR.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	if c.ASR.ChunkSeconds <= 0 {
		c.ASR.ChunkSeconds = defaultChunkSeconds
	}
	if c.ASR.StrideSeconds < 0 {
		c.ASR.StrideSeconds = defaultStrideSeconds
	}
	if c.ASR.RetryChunkSeconds <= 0 {
		c.ASR.RetryChunkSeconds = defaultRetryChunkSeconds
	}
	if c.ASR.RetryStrideSeconds < 0 {
		c.ASR.RetryStrideSeconds = defaultRetryStrideSeconds
	}
	if c.ASR.ExtractTimeoutSeconds <= 0 {
		c.ASR.ExtractTimeoutSeconds = defaultExtractTimeoutSeconds
	}
	if c.ASR.RequestTimeoutSeconds <= 0 {
		c.ASR.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeExport() {
	if c.Export.FrameRate <= 0 {
		c.Export.FrameRate = defaultExportFrameRate
	}
	if c.Export.MaxSeconds <= 0 || c.Export.MaxSeconds > HardExportCapSeconds {
		c.Export.MaxSeconds = HardExportCapSeconds
	}
	if c.Export.StallTimeoutSeconds <= 0 {
		c.Export.StallTimeoutSeconds = defaultStallTimeoutSeconds
	}
	c.Export.VideoCodec = strings.TrimSpace(c.Export.VideoCodec)
	if c.Export.VideoCodec == "" {
		c.Export.VideoCodec = defaultVideoCodec
	}
	c.Export.AudioCodec = strings.TrimSpace(c.Export.AudioCodec)
	if c.Export.AudioCodec == "" {
		c.Export.AudioCodec = defaultAudioCodec
	}
	c.Export.Container = strings.ToLower(strings.TrimSpace(c.Export.Container))
	if c.Export.Container == "" {
		c.Export.Container = defaultContainer
	}
	c.Export.MimeType = strings.TrimSpace(c.Export.MimeType)
	if c.Export.MimeType == "" {
		c.Export.MimeType = defaultMimeType
	}
	if path := strings.TrimSpace(c.Export.FontPath); path != "" {
		if expanded, err := expandPath(path); err == nil {
			c.Export.FontPath = expanded
		}
	}
}

func (c *Config) normalizePreview() {
	if c.Preview.Width <= 0 {
		c.Preview.Width = defaultPreviewWidth
	}
	if c.Preview.Height <= 0 {
		c.Preview.Height = defaultPreviewHeight
	}
	if c.Preview.FrameRate <= 0 {
		c.Preview.FrameRate = defaultPreviewFrameRate
	}
	if c.Preview.MaxSeconds <= 0 {
		c.Preview.MaxSeconds = defaultPreviewMaxSeconds
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
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeMaintenance() {
	c.Maintenance.Schedule = strings.TrimSpace(c.Maintenance.Schedule)
	if c.Maintenance.Schedule == "" {
		c.Maintenance.Schedule = defaultMaintenanceSchedule
	}
	if c.Maintenance.ArtifactRetentionDays < 0 {
		c.Maintenance.ArtifactRetentionDays = 0
	}
}
