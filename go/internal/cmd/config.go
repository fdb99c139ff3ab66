package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/draftcoord/go/internal/draft/backend"
	"github.com/mcdev12/draftcoord/go/internal/draft/rules"
	"github.com/mcdev12/draftcoord/go/internal/models"
)

type Config struct {
	Catalog struct {
		Path string `yaml:"path"`
		// EnabledFormats limits which catalog formats drafts may use. Empty enables all.
		EnabledFormats []string `yaml:"enabled_formats"`
	} `yaml:"catalog"`
	Scheduler struct {
		Workers     int           `yaml:"workers"`
		RetryDelay  time.Duration `yaml:"retry_delay"`
		MaxAttempts int           `yaml:"max_attempts"`
	} `yaml:"scheduler"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the YAML config at path. A missing file yields the
// defaults; FORMATS_PATH overrides the catalog location either way.
func loadConfig(path string) (*Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Catalog.Path = getEnv("FORMATS_PATH", lo.CoalesceOrEmpty(config.Catalog.Path, "assets/catalog.yaml"))

	defaults := backend.DefaultSchedulerConfig()
	config.Scheduler.Workers = getEnvAsInt("SCHEDULER_WORKERS", lo.CoalesceOrEmpty(config.Scheduler.Workers, defaults.Workers))
	config.Scheduler.RetryDelay = lo.CoalesceOrEmpty(config.Scheduler.RetryDelay, defaults.RetryDelay)
	config.Scheduler.MaxAttempts = lo.CoalesceOrEmpty(config.Scheduler.MaxAttempts, defaults.MaxAttempts)
	return &config, nil
}

// setupFormats loads the catalog and registers the enabled formats.
func setupFormats(config *Config) (*rules.Catalog, *rules.Registry, error) {
	catalog, err := rules.LoadCatalogFile(config.Catalog.Path)
	if err != nil {
		return nil, nil, err
	}

	formats := catalog.Formats
	if enabled := config.Catalog.EnabledFormats; len(enabled) > 0 {
		formats = lo.Filter(formats, func(f models.Format, _ int) bool {
			return lo.Contains(enabled, f.ID)
		})
		if missing, _ := lo.Difference(enabled, lo.Map(formats, func(f models.Format, _ int) string { return f.ID })); len(missing) > 0 {
			return nil, nil, fmt.Errorf("enabled formats not in catalog: %v", missing)
		}
	}

	registry, err := rules.NewRegistry(formats...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to register formats: %w", err)
	}
	log.Info().
		Str("path", config.Catalog.Path).
		Strs("formats", registry.IDs()).
		Int("items", len(catalog.Items)).
		Msg("loaded catalog")
	return catalog, registry, nil
}
