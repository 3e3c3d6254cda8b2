// SPDX-License-Identifier: MPL-2.0

package document

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mb-cli/internal/issue"
	"mb-cli/internal/logging"
)

// SupportedFilenames lists the build document names in priority order.
var SupportedFilenames = []string{".mb.yml", ".mb.yaml", ".mb.json", ".mb.toml"}

// Discover walks from startDir towards the filesystem root and returns the
// path of the first build document it finds. When a directory holds more
// than one supported file, the highest priority name wins and a warning is
// logged.
func Discover(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", issue.WrapConfiguration(err, startDir, "failed to resolve start directory")
	}

	for {
		candidates := candidatesIn(dir)
		if len(candidates) > 0 {
			winner := candidates[0]
			if len(candidates) > 1 {
				log := logging.Get("Config")
				log.Warn("Found multiple config files with supported names: " + strings.Join(candidates, ", "))
				log.Warn("Using " + winner)
			}
			return filepath.Join(dir, winner), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", &issue.DocumentNotFoundError{
		StartDir:  startDir,
		Filenames: slices.Clone(SupportedFilenames),
	}
}

func candidatesIn(dir string) []string {
	var found []string
	for _, name := range SupportedFilenames {
		info, err := os.Stat(filepath.Join(dir, name))
		if err == nil && !info.IsDir() {
			found = append(found, name)
		}
	}
	return found
}
