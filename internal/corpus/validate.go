package corpus

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/poll-blend/internal/models"
)

// maxReportedIssues caps how many bad observations one error lists.
const maxReportedIssues = 10

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func observationValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate checks every observation against its field constraints: a
// non-empty election id, a non-negative finite time and shares in [0, 1].
// The returned error lists the first offending observations by index.
func Validate(obs []models.Observation) error {
	v := observationValidator()

	var issues []string
	bad := 0
	for i, o := range obs {
		msg := ""
		if err := v.Struct(o); err != nil {
			msg = describe(err)
		} else if err := o.Check(); err != nil {
			msg = err.Error()
		}
		if msg == "" {
			continue
		}
		bad++
		if len(issues) < maxReportedIssues {
			issues = append(issues, fmt.Sprintf("observation %d (election %q): %s", i, o.ElectionID, msg))
		}
	}
	if bad == 0 {
		return nil
	}
	if bad > len(issues) {
		issues = append(issues, fmt.Sprintf("and %d more", bad-len(issues)))
	}
	return fmt.Errorf("%w: %d invalid observations:\n  %s", models.ErrInvalidInput, bad, strings.Join(issues, "\n  "))
}

func describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
