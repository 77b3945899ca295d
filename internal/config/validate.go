package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"captionstudio/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateASR(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validatePreview(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMaintenance(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateASR() error {
	switch c.ASR.Backend {
	case "whisperx":
	case "http":
		if c.ASR.APIURL == "" {
			return errors.New("asr.api_url is required when asr.backend is \"http\"")
		}
	default:
		return fmt.Errorf("asr.backend: unsupported value %q (want whisperx or http)", c.ASR.Backend)
	}
	if c.ASR.Language != "" && c.ASR.AlternateLanguage != "" && language.Same(c.ASR.Language, c.ASR.AlternateLanguage) {
		return errors.New("asr.alternate_language must differ from asr.language")
	}
	if c.ASR.StrideSeconds >= c.ASR.ChunkSeconds {
		return errors.New("asr.stride_seconds must be smaller than asr.chunk_seconds")
	}
	if c.ASR.RetryStrideSeconds >= c.ASR.RetryChunkSeconds {
		return errors.New("asr.retry_stride_seconds must be smaller than asr.retry_chunk_seconds")
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.FrameRate > 120 {
		return fmt.Errorf("export.frame_rate must be at most 120, got %d", c.Export.FrameRate)
	}
	if c.Export.MaxSeconds > HardExportCapSeconds {
		return fmt.Errorf("export.max_seconds must be at most %d", HardExportCapSeconds)
	}
	switch c.Export.Container {
	case "webm", "matroska", "mp4":
	default:
		return fmt.Errorf("export.container: unsupported value %q (want webm, matroska or mp4)", c.Export.Container)
	}
	if !strings.Contains(c.Export.MimeType, "/") {
		return fmt.Errorf("export.mime_type: invalid value %q", c.Export.MimeType)
	}
	return nil
}

func (c *Config) validatePreview() error {
	if c.Preview.Width%2 != 0 || c.Preview.Height%2 != 0 {
		return errors.New("preview.width and preview.height must be even")
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

func (c *Config) validateMaintenance() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Maintenance.Schedule); err != nil {
		return fmt.Errorf("maintenance.schedule: %w", err)
	}
	return nil
}
