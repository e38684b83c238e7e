// Package validation provides field-level validation for incoming feed
// requests and configuration. Malformed input is rejected here, before it
// reaches the request store.
package validation

import (
	"fmt"
	"strings"
)

// slugChars is the allowed alphabet for location and bundle slugs.
const slugChars = "abcdefghijklmnopqrstuvwxyz0123456789-_"

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// Err returns a single error summarizing every accumulated failure, or nil.
func (c *Collector) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	msgs := make([]string, len(c.errors))
	for i, e := range c.errors {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

// ValidateSlug returns an error unless the value is a non-empty string of
// lowercase letters, digits, dashes, or underscores.
func ValidateSlug(field, value string) *ValidationError {
	if value == "" {
		return &ValidationError{
			Field:   field,
			Message: "must not be empty",
		}
	}
	for _, r := range value {
		if !strings.ContainsRune(slugChars, r) {
			return &ValidationError{
				Field:   field,
				Message: "must contain only lowercase letters, digits, dashes, or underscores",
			}
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateRange returns an error if the value is outside [min, max].
func ValidateRange(field string, value, min, max float64) *ValidationError {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %.1f and %.1f", min, max),
		}
	}
	return nil
}

// ValidatePositiveIDs returns an error if any id is not a positive integer.
func ValidatePositiveIDs(field string, ids []int) *ValidationError {
	for _, id := range ids {
		if id <= 0 {
			return &ValidationError{
				Field:   field,
				Message: "must contain only positive integers",
			}
		}
	}
	return nil
}
