package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// ValidateConfig reports every problem in c, or nil.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, ValidationError{Field: "store.path", Message: "required"})
	}
	if !oneOf(c.Log.Level, validLevels) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("%q is not one of %s", c.Log.Level, strings.Join(validLevels, ", ")),
		})
	}
	if !oneOf(c.Output.Format, validFormats) {
		errs = append(errs, ValidationError{
			Field:   "output.format",
			Message: fmt.Sprintf("%q is not one of %s", c.Output.Format, strings.Join(validFormats, ", ")),
		})
	}
	if c.Editor.QueueHint < 0 {
		errs = append(errs, ValidationError{
			Field:   "editor.queue_hint",
			Message: fmt.Sprintf("must not be negative, got %d", c.Editor.QueueHint),
		})
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
