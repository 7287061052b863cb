package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		builder.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

// Validate checks the config for values the rest of whotalks cannot use.
func (c *Config) Validate() error {
	var errors []ValidationError
	add := func(field, msg string) {
		errors = append(errors, ValidationError{Field: field, Message: msg})
	}

	switch c.Remote.Transport {
	case "exec", "native":
	default:
		add("remote.transport", "transport must be 'exec' or 'native'")
	}

	if c.Remote.Transport == "exec" && c.Remote.SSHBinary == "" {
		add("remote.ssh_binary", "ssh binary is required for the exec transport")
	}

	if c.Remote.MaxSessions < 1 {
		add("remote.max_sessions", "max sessions must be at least 1")
	}

	if c.Remote.DialRetries < 1 {
		add("remote.dial_retries", "dial retries must be at least 1")
	}

	if c.Remote.ListingCommand == "" {
		add("remote.listing_command", "listing command is required")
	}

	if c.Remote.ProcessListingCommand == "" {
		add("remote.process_listing_command", "process listing command is required")
	}

	switch c.Remote.CmdlineMode {
	case "batch", "per-pid":
	default:
		add("remote.cmdline_mode", "cmdline mode must be 'batch' or 'per-pid'")
	}

	if c.Direction.EphemeralThreshold < 0 || c.Direction.EphemeralThreshold > 65535 {
		add("direction.ephemeral_threshold", "ephemeral threshold must be between 0 and 65535")
	}

	for i, r := range c.Labels.Rules {
		if r.Pattern == "" {
			add(fmt.Sprintf("labels.rules[%d].pattern", i), "pattern cannot be empty")
		}
		if r.Label == "" {
			add(fmt.Sprintf("labels.rules[%d].label", i), "label cannot be empty")
		}
	}

	if c.Geo.Enabled {
		if c.Geo.Endpoint == "" {
			add("geo.endpoint", "endpoint is required when geolocation is enabled")
		}
		if c.Geo.Timeout <= 0 {
			add("geo.timeout", "timeout must be positive")
		}
		if c.Geo.Concurrency < 1 {
			add("geo.concurrency", "concurrency must be at least 1")
		}
	}

	if len(errors) > 0 {
		return &MultiValidationError{Errors: errors}
	}
	return nil
}
