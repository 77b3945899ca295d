package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"captionstudio/internal/asr"
	"captionstudio/internal/config"
	"captionstudio/internal/jobs"
	"captionstudio/internal/logging"
	"captionstudio/internal/services"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger

	asrOnce   sync.Once
	asrHandle *asr.Handle
	asrErr    error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.verbose != nil && *c.verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// ensureLogger builds the process logger once. Logger setup failures fall
// back to a no-op logger so commands still run.
func (c *commandContext) ensureLogger(stderr io.Writer) *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "warning: logging disabled: %v\n", err)
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

// ensureASR builds the process-wide engine handle once, so every
// transcription in a run shares one model load.
func (c *commandContext) ensureASR(logger *slog.Logger) (*asr.Handle, error) {
	c.asrOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.asrErr = err
			return
		}
		handle, err := asr.NewHandleFromConfig(cfg, logger, nil)
		if err != nil {
			c.asrErr = services.Wrap(services.ErrConfiguration, "transcribe", "load backend", "transcription backend misconfigured", err)
			return
		}
		c.asrHandle = handle
	})
	return c.asrHandle, c.asrErr
}

// openJobs opens job history. History is best effort for pipeline commands:
// a nil store with a printed warning lets the command continue.
func (c *commandContext) openJobs(stderr io.Writer) *jobs.Store {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "warning: job history unavailable: %v\n", err)
		return nil
	}
	return store
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
