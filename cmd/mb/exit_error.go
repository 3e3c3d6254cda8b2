// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"mb-cli/internal/issue"
	"mb-cli/internal/shell"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCodeFor maps an error to the process exit code: problems the user
// must fix in configuration exit with 2, a failed child process passes its
// own code through and anything else exits with 1.
func exitCodeFor(err error) int {
	var (
		exitErr *ExitError
		procErr *shell.ProcessError
		unknown *issue.UnknownCommandError
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.As(err, &procErr) && procErr.ExitCode > 0:
		return procErr.ExitCode
	case issue.IsConfiguration(err), errors.As(err, &unknown):
		return 2
	}
	return 1
}

// withExitCode wraps err into an ExitError carrying its exit code.
func withExitCode(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return &ExitError{Code: exitCodeFor(err), Err: err}
}
