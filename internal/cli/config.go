package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML config file. Command-line flags override
// every value it sets.
//
//	database: ./querydeck.db
//	catalog: ./catalog.cue
//	default_limit: 50
//	log_level: info
type Config struct {
	Database     string `yaml:"database"`
	Catalog      string `yaml:"catalog"`
	DefaultLimit int    `yaml:"default_limit"`
	LogLevel     string `yaml:"log_level"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

// LoadConfig reads a config file. Unknown keys are rejected. Relative
// database and catalog paths resolve against the config file's directory.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DefaultLimit < 0 {
		return nil, fmt.Errorf("default_limit must be >= 0, got %d", cfg.DefaultLimit)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	cfg.Database = resolvePath(dir, cfg.Database)
	cfg.Catalog = resolvePath(dir, cfg.Catalog)
	return &cfg, nil
}

func resolvePath(dir, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// parseLevel maps a config level name to a slog level. Empty is info.
func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}
