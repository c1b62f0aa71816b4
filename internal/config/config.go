// Package config loads service settings from an optional YAML file and the
// environment. Pipeline thresholds are not configurable here.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"ambient-narrative-go/internal/types"
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
		WriteTimeoutSec int    `yaml:"write_timeout_sec"`
		MaxBodyBytes    int64  `yaml:"max_body_bytes"`
	} `yaml:"server"`
	Pipeline struct {
		DefaultProfile string `yaml:"default_profile"`
		SwapRoles      bool   `yaml:"swap_roles"`
	} `yaml:"pipeline"`
	Transcription struct {
		FetchTimeoutSec int `yaml:"fetch_timeout_sec"`
		MaxRetries      int `yaml:"max_retries"`
	} `yaml:"transcription"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
}

// DefaultPath is read when no path is given and CONFIG_FILE is unset.
const DefaultPath = "config.yaml"

func Default() *Config {
	c := &Config{}
	c.Server.Port = "8080"
	c.Server.ReadTimeoutSec = 15
	c.Server.WriteTimeoutSec = 60
	c.Server.MaxBodyBytes = 10 << 20
	c.Pipeline.DefaultProfile = types.ProfileDefault.String()
	c.Transcription.FetchTimeoutSec = 40
	c.Transcription.MaxRetries = 3
	c.Store.Path = "narrative_runs.db"
	return c
}

// Load reads path (or CONFIG_FILE, or DefaultPath) over the defaults and then
// applies environment overrides. A missing default file is not an error; a
// missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("DEFAULT_PROFILE"); v != "" {
		c.Pipeline.DefaultProfile = v
	}
	if v := os.Getenv("FETCH_TIMEOUT_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FETCH_TIMEOUT_SEC: %w", err)
		}
		c.Transcription.FetchTimeoutSec = n
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := c.Profile(); err != nil {
		return err
	}
	if c.Transcription.FetchTimeoutSec <= 0 {
		return fmt.Errorf("transcription.fetch_timeout_sec must be positive, got %d", c.Transcription.FetchTimeoutSec)
	}
	if c.Transcription.MaxRetries < 0 {
		return fmt.Errorf("transcription.max_retries must not be negative")
	}
	return nil
}

// Profile resolves the configured default cleanup profile.
func (c *Config) Profile() (types.CleanupProfile, error) {
	return types.ParseCleanupProfile(c.Pipeline.DefaultProfile)
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Transcription.FetchTimeoutSec) * time.Second
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSec) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSec) * time.Second
}
