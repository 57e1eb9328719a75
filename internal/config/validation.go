package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// customValidations are the tags Config's struct tags rely on.
var customValidations = []struct {
	tag string
	fn  validator.Func
}{
	{"environment", validateEnvironment},
	{"loglevel", validateLogLevel},
	{"fit_method", validateFitMethod},
	{"variance_form", validateVarianceForm},
	{"fold_strategy", validateFoldStrategy},
}

// NewValidator creates a new validator with custom validation functions.
// It panics if a custom validation cannot be registered.
func NewValidator() *CustomValidator {
	v := validator.New()
	for _, cv := range customValidations {
		mustRegister(v, cv.tag, cv.fn)
	}
	return &CustomValidator{validator: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("config: failed to register %q validation: %v", tag, err))
	}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateFitMethod(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "mle", "mcmc":
		return true
	default:
		return false
	}
}

func validateVarianceForm(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "linear", "exponential":
		return true
	default:
		return false
	}
}

func validateFoldStrategy(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "by-election", "k-fold":
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if cfg.Validation.CrossValidationFoldStrategy == "k-fold" && cfg.Validation.Folds < 2 {
		return fmt.Errorf("k-fold cross-validation needs at least 2 folds, got %d", cfg.Validation.Folds)
	}

	if cfg.Database.Enabled {
		if cfg.Database.Port == 0 {
			return fmt.Errorf("database port is required when the database is enabled")
		}
		if cfg.Database.MinConnections > cfg.Database.MaxConnections && cfg.Database.MaxConnections > 0 {
			return fmt.Errorf("min_connections cannot exceed max_connections")
		}
	}

	if cfg.Corpus.Source == "http" && cfg.Corpus.URL == "" {
		return fmt.Errorf("corpus url is required for the http source")
	}
	if cfg.Corpus.Source == "file" && cfg.Corpus.Path == "" {
		return fmt.Errorf("corpus path is required for the file source")
	}
	if cfg.Corpus.Source == "database" && !cfg.Database.Enabled {
		return fmt.Errorf("corpus source 'database' requires database.enabled")
	}

	if cfg.Scheduler.Enabled {
		if _, err := cron.ParseStandard(cfg.Scheduler.RefitSchedule); err != nil {
			return fmt.Errorf("invalid scheduler refit_schedule %q: %w", cfg.Scheduler.RefitSchedule, err)
		}
	}

	if cfg.IsProduction() && cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "gt", "gte", "lt", "lte", "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s=%s violated, got '%v'\n", field, tag, fieldError.Param(), value)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "fit_method":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: mle, mcmc\n", field)
		case "variance_form":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: linear, exponential\n", field)
		case "fold_strategy":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: by-election, k-fold\n", field)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() && cfg.Database.Enabled && isTestCredential(cfg.Database.User) {
		return fmt.Errorf("production environment should not use test database credentials")
	}
	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}

	return false
}
