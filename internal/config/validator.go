// Package config provides configuration management for the alert pipeline.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation error with user-friendly message.
type ValidationError struct {
	Field   string      // Field path (e.g., "collector.concurrency")
	Tag     string      // Validation tag that failed (e.g., "required", "url")
	Value   interface{} // Actual value that failed validation
	Message string      // User-friendly error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// validate is the package-level validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration and returns user-friendly error messages.
func Validate(cfg *Config) error {
	var validationErrors ValidationErrors

	// Run struct validation
	if err := validate.Struct(cfg); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				validationErrors = append(validationErrors, &ValidationError{
					Field:   formatFieldName(fe.Namespace()),
					Tag:     fe.Tag(),
					Value:   fe.Value(),
					Message: translateError(fe),
				})
			}
		}
	}

	// Run custom business logic validations
	validationErrors = append(validationErrors, validateOfficeHours(cfg)...)
	validationErrors = append(validationErrors, validateMaintenanceWindows(cfg)...)
	validationErrors = append(validationErrors, validateProbe(cfg)...)
	validationErrors = append(validationErrors, validateForward(cfg)...)
	validationErrors = append(validationErrors, validateTimezoneConfig(cfg)...)

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

// validateOfficeHours validates that office hours form a non-empty range.
func validateOfficeHours(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	s := cfg.Suppression
	if s.OfficeHoursStart >= s.OfficeHoursEnd {
		errors = append(errors, &ValidationError{
			Field:   "suppression.office_hours",
			Tag:     "hour_order",
			Value:   fmt.Sprintf("start=%d, end=%d", s.OfficeHoursStart, s.OfficeHoursEnd),
			Message: fmt.Sprintf("office hours start (%d) must be before end (%d)", s.OfficeHoursStart, s.OfficeHoursEnd),
		})
	}

	return errors
}

// validateMaintenanceWindows validates that every window parses and ends after it starts.
func validateMaintenanceWindows(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	for i, w := range cfg.Suppression.MaintenanceWindows {
		field := fmt.Sprintf("suppression.maintenance_windows[%d]", i)
		if w.Start == "" || w.End == "" {
			continue // reported by the required tag
		}
		start, end, err := w.Range()
		if err != nil {
			errors = append(errors, &ValidationError{
				Field:   field,
				Tag:     "rfc3339",
				Value:   fmt.Sprintf("start=%s, end=%s", w.Start, w.End),
				Message: err.Error(),
			})
			continue
		}
		if !end.After(start) {
			errors = append(errors, &ValidationError{
				Field:   field,
				Tag:     "window_order",
				Value:   fmt.Sprintf("start=%s, end=%s", w.Start, w.End),
				Message: "maintenance window end must be after start",
			})
		}
	}

	return errors
}

// validateProbe validates that the selected probe kind has what it needs.
func validateProbe(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	switch cfg.Probe.Kind {
	case "sql":
		if cfg.Probe.Driver == "" || cfg.Probe.DSN == "" {
			errors = append(errors, &ValidationError{
				Field:   "probe",
				Tag:     "required_when_sql",
				Value:   fmt.Sprintf("driver=%s", cfg.Probe.Driver),
				Message: "driver and dsn are required when probe kind is sql",
			})
		}
	case "http":
		if cfg.Probe.URL == "" {
			errors = append(errors, &ValidationError{
				Field:   "probe.url",
				Tag:     "required_when_http",
				Value:   "",
				Message: "url is required when probe kind is http",
			})
		}
	}

	return errors
}

// validateForward validates enabled sinks.
func validateForward(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	if cfg.Forward.Webhook.Enabled && cfg.Forward.Webhook.Endpoint == "" {
		errors = append(errors, &ValidationError{
			Field:   "forward.webhook.endpoint",
			Tag:     "required_when_enabled",
			Value:   "",
			Message: "endpoint is required when the webhook sink is enabled",
		})
	}
	if cfg.Forward.NATS.Enabled && cfg.Forward.NATS.URL == "" {
		errors = append(errors, &ValidationError{
			Field:   "forward.nats.url",
			Tag:     "required_when_enabled",
			Value:   "",
			Message: "url is required when the NATS sink is enabled",
		})
	}

	return errors
}

// validateTimezoneConfig validates the timezone configuration.
func validateTimezoneConfig(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	if cfg.Report.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Report.Timezone); err != nil {
			errors = append(errors, &ValidationError{
				Field:   "report.timezone",
				Tag:     "timezone",
				Value:   cfg.Report.Timezone,
				Message: fmt.Sprintf("invalid timezone: %s", cfg.Report.Timezone),
			})
		}
	}

	return errors
}

// formatFieldName converts the validator field namespace to a user-friendly format.
// Example: "Config.Collector.Concurrency" -> "collector.concurrency"
func formatFieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:] // Remove "Config"
	}

	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}

	return strings.Join(parts, ".")
}

// translateError converts a validator.FieldError to a user-friendly message.
func translateError(fe validator.FieldError) string {
	field := formatFieldName(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "url":
		return fmt.Sprintf("invalid URL format: %v", fe.Value())
	case "gt":
		return fmt.Sprintf("value must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("value must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("value must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("value must be one of: %s", fe.Param())
	case "dive":
		return fmt.Sprintf("invalid value in list: %v", fe.Value())
	default:
		return fmt.Sprintf("validation failed on '%s' tag for field '%s'", fe.Tag(), field)
	}
}
