package internal

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/medleyhq/medley/internal/api"
	"github.com/medleyhq/medley/internal/database"
	"github.com/medleyhq/medley/internal/ingest"
)

type (
	// MedleyConfig is the user-supplied configuration, loaded from a YAML
	// file with environment variable overrides. The categories table maps
	// provider-specific numeric category ids to the unified category names
	// used across the canonical store; it is the only place such mappings
	// live.
	MedleyConfig struct {
		Ingest     ingest.Config           `yaml:"ingest" env-required:"true"`
		Aggregator AggregatorConfig        `yaml:"aggregator"`
		Search     SearchConfig            `yaml:"search"`
		Categories map[string]string       `yaml:"categories"`
		Database   database.DatabaseConfig `yaml:"database" env-required:"true"`
		Rest       api.RestConfig          `yaml:"api"`
	}

	AggregatorConfig struct {
		IntervalMinutes int `yaml:"interval_minutes" env:"AGGREGATOR_INTERVAL_MINUTES" env-default:"30" validate:"gt=0"`
		MaxGroupsPerRun int `yaml:"max_groups_per_run" env:"AGGREGATOR_MAX_GROUPS" env-default:"50" validate:"gte=0"`
	}

	SearchConfig struct {
		IndexPath              string `yaml:"index_path" env:"SEARCH_INDEX_PATH" env-default:"medley-search.db" validate:"required"`
		RebuildIntervalMinutes int    `yaml:"rebuild_interval_minutes" env:"SEARCH_REBUILD_INTERVAL_MINUTES" env-default:"360" validate:"gt=0"`
	}
)

// LoadFromFile reads the YAML config at the given path (applying env
// overrides) and validates the result.
func (config *MedleyConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	return nil
}
