// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"mb-cli/internal/logging"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// Options describe one command line to run.
	Options struct {
		// Command is a POSIX shell command line.
		Command string
		// Args are exposed to the command as $1, $2, ...
		Args []string
		// Dir is the working directory; empty means the current one.
		Dir string
		// Env is added on top of the process environment.
		Env map[string]string
		// ReturnOutput captures stdout and stderr together into
		// Result.Output instead of streaming them.
		ReturnOutput bool
		// ThrowOnFailure turns an unexpected exit code into a ProcessError.
		ThrowOnFailure bool
		// ExpectedExitCode is the exit code treated as success.
		ExpectedExitCode int
		// Stdout and Stderr receive the streams when ReturnOutput is off.
		// Nil means the process's own streams.
		Stdout io.Writer
		Stderr io.Writer
	}

	// Result is what a finished command produced.
	Result struct {
		Output   string
		ExitCode int
	}

	// ProcessError reports a command that exited with an unexpected code.
	ProcessError struct {
		Command  string
		ExitCode int
		// Output is the captured output, empty when it was streamed.
		Output string
	}
)

func (e *ProcessError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

// Execute runs opts.Command in an embedded POSIX shell and blocks until it
// finishes or ctx is cancelled. Only failures to start the command, and
// unexpected exit codes when ThrowOnFailure is set, are errors.
func Execute(ctx context.Context, opts Options) (Result, error) {
	log := logging.Get("Shell")
	log.Debug(opts.Command)

	prog, err := syntax.NewParser().Parse(strings.NewReader(opts.Command), "command")
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("failed to parse command: %w", err)
	}

	var (
		captured bytes.Buffer
		stdout   = opts.Stdout
		stderr   = opts.Stderr
	)
	if opts.ReturnOutput {
		stdout, stderr = &captured, &captured
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	runnerOpts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(environ(opts.Env)...)),
		interp.StdIO(nil, stdout, stderr),
	}
	if opts.Dir != "" {
		runnerOpts = append(runnerOpts, interp.Dir(opts.Dir))
	}
	// "--" keeps arguments such as "-v" from being read as shell options.
	if len(opts.Args) > 0 {
		runnerOpts = append(runnerOpts, interp.Params(append([]string{"--"}, opts.Args...)...))
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("failed to create interpreter: %w", err)
	}

	res := Result{}
	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if !errors.As(err, &status) {
			return Result{ExitCode: 1, Output: captured.String()}, fmt.Errorf("command execution failed: %w", err)
		}
		res.ExitCode = int(status)
	}
	res.Output = captured.String()

	log.Debug("Exit Code", "code", res.ExitCode)
	if opts.ReturnOutput && strings.TrimSpace(res.Output) != "" {
		log.Debug(res.Output)
	}

	if res.ExitCode != opts.ExpectedExitCode && opts.ThrowOnFailure {
		return res, &ProcessError{Command: opts.Command, ExitCode: res.ExitCode, Output: res.Output}
	}
	return res, nil
}

// environ merges extra over the process environment, sorted by name so
// that the result is deterministic.
func environ(extra map[string]string) []string {
	env := os.Environ()
	if len(extra) == 0 {
		return env
	}

	env = slices.DeleteFunc(env, func(kv string) bool {
		name, _, _ := strings.Cut(kv, "=")
		_, overridden := extra[name]
		return overridden
	})
	for _, name := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, name+"="+extra[name])
	}
	return env
}
