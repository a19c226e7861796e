package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/violet-project/violet-analyzer/violet/difftrace"
)

// Diff modes.
const (
	ModeItems = "items" // render full trace items
	ModeKeys  = "keys"  // render only (function, caller) keys
)

// Config holds every setting of the analyzer. It can be loaded from a YAML
// file; flags given on the command line take precedence.
// All keys must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Input            string  `yaml:"input"`
	Output           string  `yaml:"output"`
	Overwrite        bool    `yaml:"overwrite"` // reserved; output files are always truncated
	LogLevel         string  `yaml:"log_level"`
	LogFile          string  `yaml:"log_file"`
	Context          int     `yaml:"context"`
	Mode             string  `yaml:"mode"`
	Symbols          string  `yaml:"symbols"`
	OutDir           string  `yaml:"outdir"`
	LatencyThreshold float64 `yaml:"latency_threshold"`
}

// DefaultConfig returns the settings used when neither a config file nor a
// flag provides a value.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Context:  difftrace.DefaultContext,
		Mode:     ModeItems,
	}
}

// LoadConfig reads a YAML config file over the defaults. ${VAR} references
// are expanded from the environment, after loading a .env file next to the
// config file when there is one.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, &ConfigurationError{Msg: "loading " + envFile, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &ConfigurationError{Msg: "reading config file", Err: err}
	}
	expanded := os.ExpandEnv(string(data))

	// Strict parsing: unknown keys are typos and must fail.
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, &ConfigurationError{Msg: "parsing config file " + path, Err: err}
	}
	return cfg, nil
}

// Validate checks the settings that do not depend on the file system.
func (c Config) Validate() error {
	if c.Input == "" {
		return &ConfigurationError{Msg: "input file is required (-i/--input)"}
	}
	if c.Mode != ModeItems && c.Mode != ModeKeys {
		return &ConfigurationError{Msg: fmt.Sprintf("unknown mode %q (want %s or %s)", c.Mode, ModeItems, ModeKeys)}
	}
	if c.Context < 0 {
		return &ConfigurationError{Msg: fmt.Sprintf("context must be >= 0, got %d", c.Context)}
	}
	if math.IsNaN(c.LatencyThreshold) || math.IsInf(c.LatencyThreshold, 0) {
		return &ConfigurationError{Msg: fmt.Sprintf("latency threshold must be a finite number, got %g", c.LatencyThreshold)}
	}
	if c.LatencyThreshold < 0 {
		return &ConfigurationError{Msg: fmt.Sprintf("latency threshold must be >= 0, got %g", c.LatencyThreshold)}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &ConfigurationError{Msg: "invalid log level", Err: err}
	}
	return nil
}

// checkInput verifies that the input is an existing regular file.
func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return &InputNotFoundError{Path: path}
	}
	return nil
}

// applyFlags copies the flags set explicitly on the command line into cfg.
func applyFlags(cfg *Config, flags *Config, cmd *cobra.Command) {
	set := cmd.Flags().Changed
	if set("input") {
		cfg.Input = flags.Input
	}
	if set("output") {
		cfg.Output = flags.Output
	}
	if set("overwrite") {
		cfg.Overwrite = flags.Overwrite
	}
	if set("log") {
		cfg.LogLevel = flags.LogLevel
	}
	if set("log-file") {
		cfg.LogFile = flags.LogFile
	}
	if set("context") {
		cfg.Context = flags.Context
	}
	if set("mode") {
		cfg.Mode = flags.Mode
	}
	if set("symbols") {
		cfg.Symbols = flags.Symbols
	}
	if set("outdir") {
		cfg.OutDir = flags.OutDir
	}
	if set("latency-threshold") {
		cfg.LatencyThreshold = flags.LatencyThreshold
	}
}
