package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var knownEnvironments = []string{"net", "replay"}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Errors joins validation errors into one error.
type Errors []ValidationError

// Error returns the error message
func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) []ValidationError {
	var errors []ValidationError

	if config.Environment != "" && !isKnownEnvironment(config.Environment) {
		errors = append(errors, ValidationError{
			Path:    "environment",
			Message: fmt.Sprintf("unknown environment: %s", config.Environment),
		})
	}

	if strings.EqualFold(config.Environment, "replay") && config.Fixtures == "" {
		errors = append(errors, ValidationError{
			Path:    "fixtures",
			Message: "fixtures is required for the replay environment",
		})
	}

	if config.Timeout != "" {
		if d, err := time.ParseDuration(config.Timeout); err != nil {
			errors = append(errors, ValidationError{
				Path:    "timeout",
				Message: fmt.Sprintf("invalid duration: %s", config.Timeout),
			})
		} else if d < 0 {
			errors = append(errors, ValidationError{
				Path:    "timeout",
				Message: "timeout cannot be negative",
			})
		}
	}

	for i, route := range config.Routes {
		path := fmt.Sprintf("routes[%d]", i)
		errors = append(errors, validateTest(path, route.URL, route.Pattern)...)

		if route.Environment == "" {
			errors = append(errors, ValidationError{
				Path:    path + ".environment",
				Message: "environment is required",
			})
		} else if !isKnownEnvironment(route.Environment) {
			errors = append(errors, ValidationError{
				Path:    path + ".environment",
				Message: fmt.Sprintf("unknown environment: %s", route.Environment),
			})
		} else if strings.EqualFold(route.Environment, "replay") && route.Fixtures == "" && config.Fixtures == "" {
			errors = append(errors, ValidationError{
				Path:    path + ".fixtures",
				Message: "fixtures is required for the replay environment",
			})
		}
	}

	for i, rule := range config.Filters {
		path := fmt.Sprintf("filters[%d]", i)
		errors = append(errors, validateTest(path, rule.URL, rule.Pattern)...)

		actions := 0
		if rule.Extract != "" {
			actions++
		}
		if len(rule.Schema) > 0 {
			actions++
		}
		if rule.SchemaFile != "" {
			actions++
		}
		if actions != 1 {
			errors = append(errors, ValidationError{
				Path:    path,
				Message: "exactly one of extract, schema or schemaFile is required",
			})
		}
	}

	return errors
}

func validateTest(path, url, pattern string) []ValidationError {
	var errors []ValidationError
	switch {
	case url == "" && pattern == "":
		errors = append(errors, ValidationError{
			Path:    path,
			Message: "url or pattern is required",
		})
	case url != "" && pattern != "":
		errors = append(errors, ValidationError{
			Path:    path,
			Message: "url and pattern are mutually exclusive",
		})
	case pattern != "":
		if _, err := regexp.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Path:    path + ".pattern",
				Message: fmt.Sprintf("invalid pattern: %v", err),
			})
		}
	}
	return errors
}

func isKnownEnvironment(env string) bool {
	for _, known := range knownEnvironments {
		if strings.EqualFold(env, known) {
			return true
		}
	}
	return false
}
