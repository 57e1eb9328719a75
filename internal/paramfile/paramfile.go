// Package paramfile reads and writes fitted parameters as YAML so a fit can
// be shipped to machines without database access.
package paramfile

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/variance"
)

// File is the on-disk form of a fit.
type File struct {
	RunID         string                         `yaml:"run_id,omitempty"`
	Method        models.FitMethod               `yaml:"method"`
	FittedAt      time.Time                      `yaml:"fitted_at"`
	TimeDomainMax float64                        `yaml:"time_domain_max"`
	LogLikelihood float64                        `yaml:"log_likelihood"`
	Observations  int                            `yaml:"observations"`
	Parameters    models.VarianceModelParameters `yaml:",inline"`
}

// FromResult builds a file from an estimator result. timeDomainMax is the
// horizon the parameters were validated over.
func FromResult(result models.FitResult, timeDomainMax float64) File {
	return File{
		Method:        result.Method,
		FittedAt:      time.Now().UTC().Truncate(time.Second),
		TimeDomainMax: timeDomainMax,
		LogLikelihood: result.LogLikelihood(),
		Observations:  result.Fundamentals.Observations,
		Parameters:    result.Parameters,
	}
}

// FromRun builds a file from a stored run.
func FromRun(run *models.FitRun, timeDomainMax float64) File {
	return File{
		RunID:         run.ID.String(),
		Method:        run.Method,
		FittedAt:      run.FittedAt.UTC().Truncate(time.Second),
		TimeDomainMax: timeDomainMax,
		LogLikelihood: run.LogLikelihood,
		Observations:  run.Observations,
		Parameters:    run.Parameters,
	}
}

// Validate checks the parameters over [0, TimeDomainMax]. A file must
// record the positive horizon it was validated over.
func (f File) Validate() error {
	return f.ValidateWithin(0)
}

// ValidateWithin checks the parameters over the wider of the recorded
// horizon and domain, so a file fitted over a short horizon cannot serve
// times past the point where its variances turn negative.
func (f File) ValidateWithin(domain float64) error {
	if f.Parameters.Form == "" {
		f.Parameters.Form = variance.FormLinear
	}
	if err := variance.ValidateParameters(f.Parameters, math.Max(f.TimeDomainMax, domain)); err != nil {
		return err
	}
	if !(f.TimeDomainMax > 0) {
		return fmt.Errorf("%w: time_domain_max must be positive, got %g", models.ErrInvalidInput, f.TimeDomainMax)
	}
	return nil
}

// Write stores f at path. The file is written to a temporary name first so
// readers never see a partial file.
func Write(path string, f File) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid parameters: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".params-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Read loads and validates the file at path.
func Read(path string) (File, error) {
	return ReadWithin(path, 0)
}

// ReadWithin loads the file at path and validates it over at least
// [0, domain].
func ReadWithin(path string, domain float64) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read parameter file: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("%w: failed to parse parameter file %s: %v", models.ErrInvalidInput, path, err)
	}
	if f.Parameters.Form == "" {
		f.Parameters.Form = variance.FormLinear
	}
	if err := f.ValidateWithin(domain); err != nil {
		return File{}, fmt.Errorf("parameter file %s: %w", path, err)
	}
	return f, nil
}
