package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"npastat/internal/config"
	apperrors "npastat/internal/errors"
)

// Options control category selection and significance testing
type Options struct {
	// MinSize is exclusive: a category needs more than MinSize complete rows.
	MinSize int `validate:"gte=0"`
	// PThreshold gates Tukey HSD after ANOVA and marks significant pairs.
	PThreshold float64 `validate:"gt=0,lt=1"`
	// Confidence of the Tukey simultaneous intervals.
	Confidence float64 `validate:"gt=0,lt=1"`
}

// DefaultOptions matches the registry study protocol
func DefaultOptions() Options {
	return Options{
		MinSize:    config.DefaultMinSize,
		PThreshold: config.DefaultPThreshold,
		Confidence: config.DefaultConfidence,
	}
}

// OptionsFrom maps the analysis section of the app config
func OptionsFrom(cfg config.AnalysisConfig) Options {
	return Options{
		MinSize:    cfg.MinSize,
		PThreshold: cfg.PThreshold,
		Confidence: cfg.Confidence,
	}
}

var validate = validator.New()

// Validate checks the options, reporting every failing field
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewAppValidationError(err.Error())
	}

	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = formatValidationError(fe)
	}
	return apperrors.NewAppValidationError("invalid analysis options: " + strings.Join(msgs, "; "))
}

func formatValidationError(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
