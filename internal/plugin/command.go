// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"mb-cli/internal/logging"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

// RunCommand parses the flags every command accepts from args and times
// body, which receives the remaining positional arguments. --verbose
// lowers the shared log level to debug. A help request runs nothing.
func RunCommand(ctx context.Context, name string, logger *log.Logger, args []string, body func(ctx context.Context, args []string) error) error {
	var verbose bool
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.BoolVar(&verbose, "verbose", false, "Enables Verbose output")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	if verbose {
		logging.SetLevel(log.DebugLevel)
	}

	start := time.Now()
	err := body(ctx, fs.Args())
	logger.Info(fmt.Sprintf("Command Time: %s", time.Since(start)))
	return err
}
