package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/lambdajobs"
	"github.com/wippyai/lambdajobs/errors"
)

// defaultConfigFile is read from the working directory when --config is
// not given.
const defaultConfigFile = "lambdajobs.toml"

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatCBOR = "cbor"
)

// Colour modes.
const (
	colorAuto   = "auto"
	colorAlways = "always"
	colorNever  = "never"
)

// Config is the lambdajobs.toml file.
type Config struct {
	Pass   PassConfig   `toml:"pass"`
	Output OutputConfig `toml:"output"`
	Log    LogConfig    `toml:"log"`
}

// PassConfig tunes the rewrite.
type PassConfig struct {
	Verify       bool `toml:"verify"`
	KeepOriginal bool `toml:"keep-original"`
	MaxChains    int  `toml:"max-chains"`
	NoStructs    bool `toml:"no-closure-structs"`
}

// OutputConfig selects where and how results go.
type OutputConfig struct {
	Format string `toml:"format"`
	Color  string `toml:"color"`
	// Dir receives processed modules. Empty rewrites inputs in place.
	Dir string `toml:"out"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `toml:"level"`
}

func defaultConfig() *Config {
	return &Config{
		Pass:   PassConfig{Verify: true, MaxChains: lambdajobs.DefaultMaxChainsPerMethod},
		Output: OutputConfig{Format: formatText, Color: colorAuto},
		Log:    LogConfig{Level: "warn"},
	}
}

// loadConfig reads path over the defaults. A missing default file is
// not an error; a missing explicit one is.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse "+path)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Output.Format {
	case formatText, formatJSON, formatYAML, formatCBOR:
	default:
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown output format %q", c.Output.Format))
	}
	switch c.Output.Color {
	case colorAuto, colorAlways, colorNever:
	default:
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown color mode %q", c.Output.Color))
	}
	if c.Pass.MaxChains < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "max-chains must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}
	return nil
}

// processor builds the library config.
func (c *Config) processor(log *zap.Logger) *lambdajobs.Processor {
	return lambdajobs.New(lambdajobs.Config{
		Logger:                log,
		MaxChainsPerMethod:    c.Pass.MaxChains,
		Verify:                c.Pass.Verify,
		KeepOriginal:          c.Pass.KeepOriginal,
		DisableClosureStructs: c.Pass.NoStructs,
	})
}

// logger builds a zap logger writing to stderr.
func (c *Config) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	if c.Output.Format != formatText {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
