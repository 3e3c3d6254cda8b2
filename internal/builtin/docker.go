// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"

	"mb-cli/internal/plugin"
	"mb-cli/internal/shell"

	"github.com/kballard/go-shellquote"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DockerCommand runs a command line inside a throwaway container and
// streams the container's output.
type DockerCommand struct {
	command
	image            string
	cmd              string
	env              map[string]string
	throwOnFailure   bool
	expectedExitCode int
}

// NewDockerCommand is the factory of DockerCommand.
func NewDockerCommand(plugin.Deps) (plugin.Command, error) {
	return &DockerCommand{
		command:        newCommand(DockerCommandName, "Runs a command in a container"),
		throwOnFailure: true,
	}, nil
}

func (c *DockerCommand) ApplyConfig(cfg map[string]any) plugin.BindResult {
	return c.bindCommon(cfg).
		String("image", &c.image).
		String("command", &c.cmd).
		StringMap("env", &c.env).
		Bool("throw_on_failure", &c.throwOnFailure).
		Int("expected_exit_code", &c.expectedExitCode).
		Result()
}

// Request builds the container request for args.
func (c *DockerCommand) Request(args []string) (testcontainers.ContainerRequest, error) {
	if c.image == "" {
		return testcontainers.ContainerRequest{}, errors.New("DockerCommand needs an image")
	}
	req := testcontainers.ContainerRequest{
		Image:      c.image,
		Env:        c.env,
		WaitingFor: wait.ForExit(),
	}
	if line := c.commandLine(args); line != "" {
		req.Cmd = []string{"sh", "-c", line}
	}
	return req, nil
}

func (c *DockerCommand) commandLine(args []string) string {
	if len(args) == 0 {
		return c.cmd
	}
	if c.cmd == "" {
		return shellquote.Join(args...)
	}
	return c.cmd + " " + shellquote.Join(args...)
}

func (c *DockerCommand) Run(ctx context.Context, args []string) error {
	return c.run(ctx, args, func(ctx context.Context, rest []string) error {
		req, err := c.Request(rest)
		if err != nil {
			return err
		}

		c.log.Debug("Starting container", "image", req.Image, "cmd", req.Cmd)
		ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		// A container that failed to start may still exist.
		defer c.terminate(ctx, ctr)
		if err != nil {
			return fmt.Errorf("failed to run container %s: %w", c.image, err)
		}

		logs, err := ctr.Logs(ctx)
		if err != nil {
			return fmt.Errorf("failed to read container output: %w", err)
		}
		_, copyErr := io.Copy(c.stdout, logs)
		_ = logs.Close()
		if copyErr != nil {
			return fmt.Errorf("failed to stream container output: %w", copyErr)
		}

		state, err := ctr.State(ctx)
		if err != nil {
			return fmt.Errorf("failed to inspect container: %w", err)
		}
		if state.ExitCode != c.expectedExitCode && c.throwOnFailure {
			return &shell.ProcessError{Command: c.commandLine(rest), ExitCode: state.ExitCode}
		}
		return nil
	})
}

// terminate removes ctr. A nil container is ignored.
func (c *DockerCommand) terminate(ctx context.Context, ctr testcontainers.Container) {
	if err := testcontainers.TerminateContainer(ctr, testcontainers.StopContext(context.WithoutCancel(ctx))); err != nil {
		c.log.Warn("Failed to remove container", "error", err)
	}
}
