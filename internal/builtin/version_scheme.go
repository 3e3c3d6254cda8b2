// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mb-cli/internal/logging"
	"mb-cli/internal/plugin"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Increment selects how DefaultVersionScheme derives the version.
type Increment string

const (
	// IncrementNone uses the configured version as is.
	IncrementNone Increment = "none"
	// IncrementPatch bumps the last component of the nearest matching tag.
	IncrementPatch Increment = "patch"
)

// DefaultVersionScheme derives the version from the git history of the
// project.
//
// With increment "none" the configured version is returned unchanged. With
// "patch" the nearest tag reachable from HEAD that starts with
// "<version>." (or any X.Y.Z tag when no version is configured) is used:
// a tag on HEAD itself is the version, otherwise its last component is
// incremented. Without such a tag the configured version is returned.
type DefaultVersionScheme struct {
	dir       string
	version   string
	increment Increment
	log       *log.Logger
}

// NewDefaultVersionScheme is the factory of DefaultVersionScheme.
func NewDefaultVersionScheme(d plugin.Deps) (plugin.VersionScheme, error) {
	l := logging.Get("VersionScheme")
	l.Debug("Initializing DefaultVersionScheme")
	return &DefaultVersionScheme{dir: d.Config().ProjectDir(), increment: IncrementNone, log: l}, nil
}

// ApplyConfig binds version and increment.
func (v *DefaultVersionScheme) ApplyConfig(cfg map[string]any) plugin.BindResult {
	return plugin.Bind(cfg).
		String("version", &v.version).
		Func("increment", func(val any) error {
			s := Increment(strings.ToLower(fmt.Sprint(val)))
			if s != IncrementNone && s != IncrementPatch {
				return fmt.Errorf("increment must be %q or %q, got %q", IncrementNone, IncrementPatch, s)
			}
			v.increment = s
			return nil
		}).
		Result()
}

// Generate returns hash, short_hash and version.
func (v *DefaultVersionScheme) Generate(ctx context.Context) (map[string]any, error) {
	v.log.Info("Generating Version...")

	repo, err := git.PlainOpenWithOptions(v.dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", v.dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	version := v.version
	if v.increment == IncrementPatch {
		version, err = v.describe(ctx, repo, head.Hash())
		if err != nil {
			return nil, err
		}
	}

	hash := head.Hash().String()
	out := map[string]any{"hash": hash, "short_hash": hash[:7], "version": version}
	v.log.Info(fmt.Sprintf("Version: %v", out))
	return out, nil
}

func (v *DefaultVersionScheme) describe(ctx context.Context, repo *git.Repository, from plumbing.Hash) (string, error) {
	tags, err := v.matchingTags(repo)
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return v.version, nil
	}

	commits, err := repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return "", fmt.Errorf("failed to read git history: %w", err)
	}
	defer commits.Close()

	var (
		found    string
		distance int
	)
	err = commits.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if names, ok := tags[c.Hash]; ok {
			found = highest(names)
			return storer.ErrStop
		}
		distance++
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk git history: %w", err)
	}

	switch {
	case found == "":
		return v.version, nil
	case distance == 0:
		return found, nil
	}
	return bumpLast(found)
}

// matchingTags maps commit hashes to the names of matching tags pointing
// at them. Annotated tags are peeled to their commit.
func (v *DefaultVersionScheme) matchingTags(repo *git.Repository) (map[plumbing.Hash][]string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer iter.Close()

	out := make(map[plumbing.Hash][]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if !v.matches(name) {
			return nil
		}
		target := ref.Hash()
		tag, err := repo.TagObject(target)
		switch {
		case err == nil:
			commit, err := tag.Commit()
			if err != nil {
				return nil
			}
			target = commit.Hash
		case !errors.Is(err, plumbing.ErrObjectNotFound):
			return err
		}
		out[target] = append(out[target], name)
		return nil
	})
	return out, err
}

// matches reports whether tag counts for describe. Without a configured
// version any semantic version tag matches, with or without a "v" prefix.
func (v *DefaultVersionScheme) matches(tag string) bool {
	if v.version == "" {
		_, err := semver.StrictNewVersion(strings.TrimPrefix(tag, "v"))
		return err == nil
	}
	rest, ok := strings.CutPrefix(tag, v.version+".")
	if !ok || rest == "" {
		return false
	}
	last := rest[strings.LastIndex(rest, ".")+1:]
	_, err := strconv.Atoi(last)
	return err == nil
}

// highest picks the greatest of several tags on one commit, comparing as
// semantic versions where possible.
func highest(names []string) string {
	best := names[0]
	for _, n := range names[1:] {
		if compareTags(n, best) > 0 {
			best = n
		}
	}
	return best
}

func compareTags(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return cmp.Compare(a, b)
}

// bumpLast increments the last dot-separated component of tag.
func bumpLast(tag string) (string, error) {
	i := strings.LastIndex(tag, ".")
	n, err := strconv.Atoi(tag[i+1:])
	if err != nil {
		return "", fmt.Errorf("cannot increment tag %s: %w", tag, err)
	}
	if i < 0 {
		return strconv.Itoa(n + 1), nil
	}
	return tag[:i] + "." + strconv.Itoa(n+1), nil
}
