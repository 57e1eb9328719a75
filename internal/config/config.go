// Package config provides configuration management for poll-blend.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Estimator  EstimatorConfig  `mapstructure:"estimator" validate:"required"`
	Validation ValidationConfig `mapstructure:"validation" validate:"required"`
	Corpus     CorpusConfig     `mapstructure:"corpus"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Server     ServerConfig     `mapstructure:"server"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration. Persistence
// is optional: with Enabled false fits are neither stored nor activated.
type DatabaseConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port           int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Name           string `mapstructure:"name" validate:"required_if=Enabled true"`
	User           string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"gte=0"`
	MinConnections int    `mapstructure:"min_connections" validate:"gte=0"`
}

// SecretsConfig points at an AWS Secrets Manager secret that overrides the
// database password.
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
}

// EstimatorConfig configures the parameter estimator
type EstimatorConfig struct {
	TimeDomainMax            float64    `mapstructure:"time_domain_max" validate:"gt=0"`
	MinObservationsPerSignal int        `mapstructure:"min_observations_per_signal" validate:"gte=2"`
	OptimizerTolerance       float64    `mapstructure:"optimizer_tolerance" validate:"gt=0"`
	OptimizerMaxIterations   int        `mapstructure:"optimizer_max_iterations" validate:"gt=0"`
	Method                   string     `mapstructure:"method" validate:"fit_method"`
	VarianceForm             string     `mapstructure:"variance_form" validate:"variance_form"`
	TimeoutSeconds           int        `mapstructure:"timeout_seconds" validate:"gte=0"`
	MCMC                     MCMCConfig `mapstructure:"mcmc"`
}

// MCMCConfig configures the posterior sampler
type MCMCConfig struct {
	Samples     int     `mapstructure:"samples" validate:"gt=0"`
	BurnIn      int     `mapstructure:"burn_in" validate:"gte=0"`
	Chains      int     `mapstructure:"chains" validate:"gt=0"`
	Thin        int     `mapstructure:"thin" validate:"gt=0"`
	Seed        int64   `mapstructure:"seed"`
	InitialStep float64 `mapstructure:"initial_step" validate:"gt=0"`
}

// ValidationConfig configures out-of-sample evaluation
type ValidationConfig struct {
	CrossValidationFoldStrategy string  `mapstructure:"cross_validation_fold_strategy" validate:"required,fold_strategy"`
	Folds                       int     `mapstructure:"folds" validate:"gte=0"`
	BaselineWeight              float64 `mapstructure:"baseline_weight" validate:"gte=0,lte=1"`
	Parallelism                 int     `mapstructure:"parallelism" validate:"gte=0"`
	MinTrainElections           int     `mapstructure:"min_train_elections" validate:"gte=0"`
	WeightGridStep              float64 `mapstructure:"weight_grid_step" validate:"gt=0,lte=1"`
}

// CorpusConfig locates historical observations
type CorpusConfig struct {
	Source             string  `mapstructure:"source" validate:"required,oneof=file http database"`
	Path               string  `mapstructure:"path"`
	URL                string  `mapstructure:"url" validate:"omitempty,url"`
	Format             string  `mapstructure:"format" validate:"required,oneof=standard raw"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" validate:"gte=0"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds" validate:"gte=0"`
	RetryAttempts      int     `mapstructure:"retry_attempts" validate:"gte=0"`
}

// CacheConfig configures the fitted-parameter cache
type CacheConfig struct {
	TTLSeconds             int `mapstructure:"ttl_seconds" validate:"gt=0"`
	CleanupIntervalSeconds int `mapstructure:"cleanup_interval_seconds" validate:"gt=0"`
}

// SchedulerConfig configures periodic refits
type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RefitSchedule string `mapstructure:"refit_schedule" validate:"required_if=Enabled true"`
	AutoActivate  bool   `mapstructure:"auto_activate"`
}

// ServerConfig configures the forecast HTTP server
type ServerConfig struct {
	Address             string  `mapstructure:"address" validate:"required"`
	ReadTimeoutSeconds  int     `mapstructure:"read_timeout_seconds" validate:"gt=0"`
	WriteTimeoutSeconds int     `mapstructure:"write_timeout_seconds" validate:"gt=0"`
	RateLimitPerSecond  float64 `mapstructure:"rate_limit_per_second" validate:"gte=0"`
	RateLimitBurst      int     `mapstructure:"rate_limit_burst" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required"`
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		sslMode,
	)
}

// FitTimeout returns the configured fit timeout, zero meaning none.
func (e EstimatorConfig) FitTimeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// CacheTTL returns the parameter cache expiration.
func (c CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// CleanupInterval returns the parameter cache janitor interval.
func (c CacheConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}
