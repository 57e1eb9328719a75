package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "POLL_BLEND"

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := readExpanded(v, data); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

// LoadWithDefaults loads configuration with default values for every key, so
// a missing file is not an error and each key can be overridden through
// POLL_BLEND_* environment variables.
func LoadWithDefaults(configPath string) (*Config, error) {
	v := newViper()
	setDefaults(v)

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := readExpanded(v, data); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// readExpanded expands ${VAR} placeholders before parsing.
func readExpanded(v *viper.Viper, data []byte) error {
	expanded := os.ExpandEnv(string(data))
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "poll-blend")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "poll_blend")
	v.SetDefault("database.user", "poll_blend")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)

	v.SetDefault("secrets.enabled", false)
	v.SetDefault("secrets.region", "")
	v.SetDefault("secrets.secret_name", "")

	v.SetDefault("estimator.time_domain_max", 365.0)
	v.SetDefault("estimator.min_observations_per_signal", 5)
	v.SetDefault("estimator.optimizer_tolerance", 1e-9)
	v.SetDefault("estimator.optimizer_max_iterations", 5000)
	v.SetDefault("estimator.method", "mle")
	v.SetDefault("estimator.variance_form", "linear")
	v.SetDefault("estimator.timeout_seconds", 0)
	v.SetDefault("estimator.mcmc.samples", 2000)
	v.SetDefault("estimator.mcmc.burn_in", 1000)
	v.SetDefault("estimator.mcmc.chains", 4)
	v.SetDefault("estimator.mcmc.thin", 1)
	v.SetDefault("estimator.mcmc.seed", 1)
	v.SetDefault("estimator.mcmc.initial_step", 0.1)

	v.SetDefault("validation.cross_validation_fold_strategy", "by-election")
	v.SetDefault("validation.folds", 5)
	v.SetDefault("validation.baseline_weight", 0.5)
	v.SetDefault("validation.parallelism", 4)
	v.SetDefault("validation.min_train_elections", 3)
	v.SetDefault("validation.weight_grid_step", 0.01)

	v.SetDefault("corpus.source", "file")
	v.SetDefault("corpus.path", "data/observations.csv")
	v.SetDefault("corpus.url", "")
	v.SetDefault("corpus.format", "standard")
	v.SetDefault("corpus.rate_limit_per_second", 2.0)
	v.SetDefault("corpus.timeout_seconds", 30)
	v.SetDefault("corpus.retry_attempts", 3)

	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("cache.cleanup_interval_seconds", 600)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.refit_schedule", "0 4 * * *")
	v.SetDefault("scheduler.auto_activate", true)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout_seconds", 10)
	v.SetDefault("server.write_timeout_seconds", 10)
	v.SetDefault("server.rate_limit_per_second", 50.0)
	v.SetDefault("server.rate_limit_burst", 100)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
