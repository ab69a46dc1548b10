// Package config loads the venue configuration and sets up logging.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	EnvLogLevel  = "BOURSE_LOG_LEVEL"
	EnvLogFormat = "BOURSE_LOG_FORMAT"

	FormatJSON    = "json"
	FormatConsole = "console"
)

type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Market struct {
		Products    []string `yaml:"products"`
		OpenOnStart bool     `yaml:"open_on_start"`
	} `yaml:"market"`

	Events struct {
		Buffer      int  `yaml:"buffer"` // AsyncSubscriber mailbox size
		LogProducts bool `yaml:"log_products"`
	} `yaml:"events"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Log.Level = "info"
	cfg.Log.Format = FormatJSON
	cfg.Events.Buffer = 1024
	cfg.Events.LogProducts = true
	return cfg
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment variables take precedence over the file.
func overrideWithEnv(cfg *Config) {
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		cfg.Log.Format = format
	}
}

func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level)
	}
	if c.Log.Format != FormatJSON && c.Log.Format != FormatConsole {
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Events.Buffer <= 0 {
		return fmt.Errorf("%w: events buffer must be positive", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Market.Products))
	for _, p := range c.Market.Products {
		if p == "" {
			return fmt.Errorf("%w: empty product symbol", ErrInvalidConfig)
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("%w: duplicate product %s", ErrInvalidConfig, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// SetupLogging points the global logger at w with the configured level and
// format.
func SetupLogging(c *Config, w io.Writer) error {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level)
	}
	zerolog.SetGlobalLevel(level)

	if c.Log.Format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}
