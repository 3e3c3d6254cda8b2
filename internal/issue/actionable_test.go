// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "load settings"}, "failed to load settings"},
		{
			"with resource",
			&ActionableError{Operation: "load settings", Resource: "config.cue"},
			"failed to load settings: config.cue",
		},
		{
			"with cause",
			&ActionableError{Operation: "load settings", Resource: "config.cue", Cause: errors.New("bad syntax")},
			"failed to load settings: config.cue: bad syntax",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("unexpected token")
	err := &ActionableError{
		Operation:   "load settings",
		Cause:       fmt.Errorf("parse: %w", root),
		Suggestions: []string{"Check the syntax", "Run with --verbose"},
	}

	quiet := err.Format(false)
	if !strings.Contains(quiet, "\n  • Check the syntax\n  • Run with --verbose") {
		t.Errorf("Format(false) misses suggestions:\n%s", quiet)
	}
	if strings.Contains(quiet, "Error chain") {
		t.Errorf("Format(false) should not show the chain:\n%s", quiet)
	}

	verbose := err.Format(true)
	for _, want := range []string{"Error chain:", "1. parse: unexpected token", "2. unexpected token"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) misses %q:\n%s", want, verbose)
		}
	}

	bare := &ActionableError{Operation: "load settings"}
	if bare.HasSuggestions() || bare.Format(true) != "failed to load settings" {
		t.Errorf("bare Format(true) = %q", bare.Format(true))
	}
}

func TestErrorContext_BuildError(t *testing.T) {
	t.Parallel()

	if err := NewErrorContext().WithResource("x").BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}

	cause := &UnknownCommandError{Name: "deploy"}
	ctx := NewErrorContext().
		WithOperation("load settings").
		WithResource("config.cue").
		WithSuggestion("first").
		WithIssue(SettingsLoadFailedId).
		Wrap(cause)
	err := ctx.BuildError()

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("BuildError() = %T, want *ActionableError", err)
	}
	if ae.Resource != "config.cue" || ae.Issue != SettingsLoadFailedId || len(ae.Suggestions) != 1 {
		t.Errorf("BuildError() = %+v", ae)
	}
	var unknown *UnknownCommandError
	if !errors.As(err, &unknown) || unknown.Name != "deploy" {
		t.Error("BuildError() should unwrap to its cause")
	}
	if IdFor(err) != SettingsLoadFailedId {
		t.Errorf("IdFor() = %v, want SettingsLoadFailedId", IdFor(err))
	}

	ctx.WithSuggestion("second")
	if len(ae.Suggestions) != 1 {
		t.Error("a built error should not share suggestions with its context")
	}
}
