// Package config loads the whole pipeline configuration from YAML.
//
// A file only needs the keys it changes: values are decoded over Default(),
// unknown keys are rejected, and durations are written as Go duration strings
// such as "1s" or "400ms".
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-coach/logging"
	"github.com/RyanBlaney/sonido-coach/session"
)

// LogFormat selects the log encoding.
type LogFormat string

const (
	LogAuto    LogFormat = "auto"
	LogJSON    LogFormat = "json"
	LogConsole LogFormat = "console"
)

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string    `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Config is the complete configuration file.
type Config struct {
	Log     LogConfig      `yaml:"log"`
	Session session.Config `yaml:",inline"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:     LogConfig{Level: "info", Format: LogAuto},
		Session: session.DefaultConfig(),
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg and returns every problem joined into one error.
func Validate(cfg *Config) error {
	var errs []error
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "", LogAuto, LogJSON, LogConsole:
	default:
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: auto, json, console", cfg.Log.Format))
	}
	if err := cfg.Session.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("config: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// NewLogger builds the logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) logging.Logger {
	var l *logging.DefaultLogger
	switch c.Format {
	case LogJSON:
		l = logging.NewLogger(w)
	case LogConsole:
		l = logging.NewConsoleLogger(w)
	default:
		if f, ok := w.(*os.File); ok && f == os.Stderr {
			l = logging.NewDefaultLogger()
		} else {
			l = logging.NewLogger(w)
		}
	}
	level, _ := logging.ParseLevel(c.Level)
	l.SetLevel(level)
	return l
}
