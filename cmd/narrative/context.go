package main

import (
	"os"
	"strings"
	"sync"
	"time"

	"ambient-narrative-go/internal/config"
	"ambient-narrative-go/internal/logger"
	"ambient-narrative-go/internal/pipeline"
	"ambient-narrative-go/internal/store"
	"ambient-narrative-go/internal/transcription"
	"ambient-narrative-go/internal/types"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	log     *logger.Logger

	store *store.Store
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{configFlag: configFlag, jsonFlag: jsonFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// logger writes to stderr so command output on stdout stays parseable.
func (c *commandContext) logger() *logger.Logger {
	c.logOnce.Do(func() {
		c.log = logger.NewWithOutput(os.Stderr)
	})
	return c.log
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) pipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.WithLogger(c.logger()))
}

func (c *commandContext) transcripts() (*transcription.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return transcription.NewClient(cfg.FetchTimeout(),
		transcription.WithMaxRetries(cfg.Transcription.MaxRetries),
		transcription.WithLogger(c.logger()),
	), nil
}

// openStore opens the run history database on first use.
func (c *commandContext) openStore() (*store.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	c.store = st
	return st, nil
}

func (c *commandContext) closeStore() {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
}

// profile resolves a --profile flag value, falling back to the configured default.
func (c *commandContext) profile(flag string) (types.CleanupProfile, error) {
	if strings.TrimSpace(flag) != "" {
		return types.ParseCleanupProfile(strings.TrimSpace(flag))
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return types.ProfileDefault, err
	}
	return cfg.Profile()
}

func formatMillis(ms float64) string {
	return (time.Duration(ms * float64(time.Millisecond))).Round(time.Microsecond).String()
}
