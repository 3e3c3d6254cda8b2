// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"mb-cli/internal/shell"
	"mb-cli/internal/testutil"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/testcontainers/testcontainers-go"
)

// dockerAvailable reports whether testcontainers can reach a provider.
// Provider detection may panic when no engine is configured.
func dockerAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

func TestDockerCommand_Request(t *testing.T) {
	t.Parallel()

	c, _, _ := newProject(t, `
commands:
  test:
    name: DockerCommand
    config:
      image: alpine:3.20
      command: go test
      env: {CGO_ENABLED: 0}
`)
	cmd := commandFor(t, c, "test").(*DockerCommand)

	req, err := cmd.Request([]string{"./...", "-run", "Test A"})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if req.Image != "alpine:3.20" {
		t.Errorf("Image = %s", req.Image)
	}
	if diff := cmp.Diff([]string{"sh", "-c", "go test ./... -run 'Test A'"}, req.Cmd); diff != "" {
		t.Errorf("Cmd mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"CGO_ENABLED": "0"}, req.Env); diff != "" {
		t.Errorf("Env mismatch (-want +got):\n%s", diff)
	}
}

func TestDockerCommand_RequiresImage(t *testing.T) {
	t.Parallel()

	c, _, _ := newProject(t, "commands:\n  d: DockerCommand\n")
	cmd := commandFor(t, c, "d")
	if err := cmd.Run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "image") {
		t.Errorf("Run() error = %v, want missing image error", err)
	}
}

func TestDockerCommand_TerminateNil(t *testing.T) {
	t.Parallel()

	c, _, _ := newProject(t, "commands:\n  d: {name: DockerCommand, config: {image: alpine}}\n")
	cmd := commandFor(t, c, "d").(*DockerCommand)
	buf := &testutil.SyncBuffer{}
	cmd.log = log.New(buf)
	cmd.terminate(context.Background(), nil)
	if strings.Contains(buf.String(), "Failed to remove container") {
		t.Errorf("terminating no container should not warn:\n%s", buf.String())
	}
}

// dockerCommand configures the DockerCommand singleton of a fresh project.
func dockerCommand(t *testing.T, config string) (*DockerCommand, *bytes.Buffer) {
	t.Helper()
	c, _, _ := newProject(t, "commands:\n  d:\n    name: DockerCommand\n    config: "+config+"\n")
	cmd := commandFor(t, c, "d").(*DockerCommand)
	var out bytes.Buffer
	cmd.stdout = &out
	return cmd, &out
}

func TestDockerCommand_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !dockerAvailable() {
		t.Skip("skipping container integration test: testcontainers provider not available")
	}

	testutil.AcquireContainer(t)

	ok, out := dockerCommand(t, `{image: "alpine:3.20", command: "echo from-container"}`)
	if err := ok.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "from-container") {
		t.Errorf("output = %q", out.String())
	}

	bad, _ := dockerCommand(t, `{image: "alpine:3.20", command: "exit 3"}`)
	err := bad.Run(context.Background(), nil)
	var procErr *shell.ProcessError
	if !errors.As(err, &procErr) || procErr.ExitCode != 3 {
		t.Errorf("Run() error = %v, want ProcessError with code 3", err)
	}

	missing, _ := dockerCommand(t, `{image: "mb-cli.invalid/missing:none", command: "true"}`)
	if err := missing.Run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "failed to run container") {
		t.Errorf("Run() with a missing image error = %v", err)
	}
}
