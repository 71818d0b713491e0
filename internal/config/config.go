// Package config resolves signbank's runtime settings.
//
// Sources, lowest precedence first:
//
//  1. built-in defaults
//  2. an optional YAML file (unknown keys are rejected)
//  3. a .env file (KEY=value lines)
//  4. the process environment
//
// Environment keys are SIGNBANK_FEATURES_DIR, SIGNBANK_OUTPUT_DIR,
// SIGNBANK_EXPECTED_T, SIGNBANK_EXPECTED_D, SIGNBANK_DB, SIGNBANK_LISTEN,
// SIGNBANK_LOG_LEVEL and SIGNBANK_LOG_FORMAT.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvFeaturesDir = "SIGNBANK_FEATURES_DIR"
	EnvOutputDir   = "SIGNBANK_OUTPUT_DIR"
	EnvExpectedT   = "SIGNBANK_EXPECTED_T"
	EnvExpectedD   = "SIGNBANK_EXPECTED_D"
	EnvDatabase    = "SIGNBANK_DB"
	EnvListen      = "SIGNBANK_LISTEN"
	EnvLogLevel    = "SIGNBANK_LOG_LEVEL"
	EnvLogFormat   = "SIGNBANK_LOG_FORMAT"
)

// DefaultEnvFile is read when Load is given no env files.
const DefaultEnvFile = ".env"

// Config holds every runtime setting.
type Config struct {
	FeaturesDir string `yaml:"features_dir"`
	OutputDir   string `yaml:"output_dir"`
	ExpectedT   int    `yaml:"expected_t"`
	ExpectedD   int    `yaml:"expected_d"`
	Database    string `yaml:"database"`
	Listen      string `yaml:"listen"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		FeaturesDir: "dataset/features",
		OutputDir:   "dataset/processed/memmap",
		ExpectedT:   60,
		ExpectedD:   226,
		Database:    "dataset/signbank.db",
		Listen:      "127.0.0.1:8000",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load resolves the configuration.
//
// path names a YAML file; "" skips it, but a named file that does not
// exist is an error. envFiles default to DefaultEnvFile; missing env files
// are ignored. Env files never override variables already set in the
// process environment.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	dotenv, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, f := range files {
		values, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file %s: %w", f, err)
		}
		// Earlier files win, as with godotenv.Load.
		for k, v := range values {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvFeaturesDir: &cfg.FeaturesDir,
		EnvOutputDir:   &cfg.OutputDir,
		EnvDatabase:    &cfg.Database,
		EnvListen:      &cfg.Listen,
		EnvLogLevel:    &cfg.LogLevel,
		EnvLogFormat:   &cfg.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		EnvExpectedT: &cfg.ExpectedT,
		EnvExpectedD: &cfg.ExpectedD,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
	}
	return nil
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	switch {
	case c.FeaturesDir == "":
		return errors.New("config: features_dir is required")
	case c.OutputDir == "":
		return errors.New("config: output_dir is required")
	case c.ExpectedT <= 0:
		return fmt.Errorf("config: expected_t must be positive, got %d", c.ExpectedT)
	case c.ExpectedD <= 0:
		return fmt.Errorf("config: expected_d must be positive, got %d", c.ExpectedD)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("config: log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}
