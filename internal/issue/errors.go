// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ConfigurationError reports a malformed document, an unresolvable
	// reference or any other problem the user must fix in configuration.
	// It is always fatal.
	ConfigurationError struct {
		// Message is the human readable description.
		Message string
		// Resource is the document path, query or plugin the problem relates to.
		Resource string
		// Cause is the underlying parse or I/O error, if any.
		Cause error
	}

	// DocumentNotFoundError is raised at startup when no build document
	// exists in the starting directory or any of its parents.
	DocumentNotFoundError struct {
		StartDir  string
		Filenames []string
	}

	// UnknownCommandError is raised when dispatch names a command that was
	// never configured or whose plugin was dropped at startup.
	UnknownCommandError struct {
		Name      string
		Available []string
	}

	// InterpolationCycleError is raised when expanding a value re-enters a
	// query that is already being expanded, or when nesting exceeds the
	// configured depth.
	InterpolationCycleError struct {
		// Chain lists the queries in the order they were entered.
		Chain []string
		// MaxDepth is set when the depth guard fired instead of a loop
		// being detected.
		MaxDepth int
	}
)

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// WrapConfiguration wraps err as a ConfigurationError attached to resource.
func WrapConfiguration(err error, resource, message string) *ConfigurationError {
	if err == nil {
		return nil
	}
	return &ConfigurationError{Message: message, Resource: resource, Cause: err}
}

func (e *ConfigurationError) Error() string {
	var msg strings.Builder
	if e.Resource != "" {
		msg.WriteString(e.Resource)
		msg.WriteString(": ")
	}
	msg.WriteString(e.Message)
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("no build document found in %s or any parent directory (looked for %s)",
		e.StartDir, strings.Join(e.Filenames, ", "))
}

func (e *UnknownCommandError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("the following command: %s is not available", e.Name)
	}
	return fmt.Sprintf("the following command: %s is not available (available: %s)",
		e.Name, strings.Join(e.Available, ", "))
}

func (e *InterpolationCycleError) Error() string {
	if e.MaxDepth > 0 {
		return fmt.Sprintf("interpolation exceeded maximum depth of %d: %s",
			e.MaxDepth, strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("interpolation cycle detected: %s", strings.Join(e.Chain, " -> "))
}

// IsConfiguration reports whether err belongs to the configuration error
// family: malformed documents, missing documents and interpolation cycles.
func IsConfiguration(err error) bool {
	var (
		cfgErr   *ConfigurationError
		notFound *DocumentNotFoundError
		cycle    *InterpolationCycleError
	)
	return errors.As(err, &cfgErr) || errors.As(err, &notFound) || errors.As(err, &cycle)
}

// IdFor maps an error to the catalog entry that explains it.
// It returns zero when no entry applies.
func IdFor(err error) Id {
	var (
		ae       *ActionableError
		notFound *DocumentNotFoundError
		unknown  *UnknownCommandError
		cycle    *InterpolationCycleError
		cfgErr   *ConfigurationError
	)
	switch {
	case errors.As(err, &ae) && ae.Issue != 0:
		return ae.Issue
	case errors.As(err, &notFound):
		return DocumentNotFoundId
	case errors.As(err, &unknown):
		return UnknownCommandId
	case errors.As(err, &cycle):
		return InterpolationCycleId
	case errors.As(err, &cfgErr):
		return ConfigurationErrorId
	}
	return 0
}
