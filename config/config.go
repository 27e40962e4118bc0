// Package config loads print-elf's yaml configuration.  Command line flags
// override individual values after loading.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/DylanMcBean/Exepose/diagnostics"
)

const (
	DefaultLogFile = "application.log"
	DefaultPrompt  = "elf> "

	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type LogConfig struct {
	// Level is the minimum console log level.
	Level string `yaml:"level"`

	// Format is the console log format (text or json).
	Format string `yaml:"format"`

	// File receives every diagnostic at debug level.  Empty disables the log
	// file.
	File string `yaml:"file"`

	// Color is one of auto, always or never.
	Color string `yaml:"color"`
}

type OutputConfig struct {
	Segments       bool `yaml:"segments"`
	Symbols        bool `yaml:"symbols"`
	DynamicSymbols bool `yaml:"dynamic_symbols"`
	Notes          bool `yaml:"notes"`
	Demangle       bool `yaml:"demangle"`
}

type ShellConfig struct {
	Prompt      string `yaml:"prompt"`
	HistoryFile string `yaml:"history_file"`
}

type Config struct {
	Log    LogConfig    `yaml:"log"`
	Output OutputConfig `yaml:"output"`
	Shell  ShellConfig  `yaml:"shell"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "warning",
			Format: diagnostics.FormatText,
			File:   DefaultLogFile,
			Color:  ColorAuto,
		},
		Output: OutputConfig{
			Demangle: true,
		},
		Shell: ShellConfig{
			Prompt: DefaultPrompt,
		},
	}
}

// Load reads the configuration file at path on top of the defaults.  An
// empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config (%s): %w", path, err)
	}

	config, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("invalid config (%s): %w", path, err)
	}

	return config, nil
}

func Parse(content []byte) (*Config, error) {
	config := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	err := decoder.Decode(config)
	if err != nil && !errors.Is(err, io.EOF) { // io.EOF: empty document
		return nil, err
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (config *Config) Validate() error {
	_, err := logrus.ParseLevel(config.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	switch config.Log.Format {
	case diagnostics.FormatText, diagnostics.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s", config.Log.Format)
	}

	switch config.Log.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid log color mode: %s", config.Log.Color)
	}

	if config.Shell.Prompt == "" {
		return fmt.Errorf("empty shell prompt")
	}

	return nil
}

// UseColors resolves the color mode against whether the console is a
// terminal.
func (config *Config) UseColors(isTerminal bool) bool {
	switch config.Log.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTerminal
	}
}
