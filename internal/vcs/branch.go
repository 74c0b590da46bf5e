// Package vcs reads branch context from git.
package vcs

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kingrea/beads-continuation/internal/shell"
)

const (
	// DefaultCommand is the git binary name.
	DefaultCommand = "git"
	defaultTimeout = 5 * time.Second
)

var epicPattern = regexp.MustCompile(`(?i)bd-[0-9a-f]{6,}`)

// Resolver derives the current epic from the checked-out branch name.
type Resolver struct {
	command string
	dir     string
	exec    shell.ExecFunc
}

// NewResolver builds a Resolver. An empty command falls back to git; a nil
// exec uses os/exec.
func NewResolver(command, dir string, execFn shell.ExecFunc) *Resolver {
	if command = strings.TrimSpace(command); command == "" {
		command = DefaultCommand
	}
	if execFn == nil {
		execFn = shell.Run
	}
	return &Resolver{command: command, dir: dir, exec: execFn}
}

// Branch returns the current branch name, trimmed.
func (r *Resolver) Branch(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	out, err := r.exec(ctx, r.dir, r.command, "branch", "--show-current")
	if err != nil {
		return "", fmt.Errorf("vcs: current branch: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// EpicID returns the bead id embedded in the branch name, or "" when there is
// none or git cannot be queried.
func (r *Resolver) EpicID(ctx context.Context) string {
	branch, err := r.Branch(ctx)
	if err != nil {
		return ""
	}
	return ExtractEpicID(branch)
}

// ExtractEpicID returns the first bd-<hex> token in branch, verbatim.
// "feature/bd-abc123-my-feature" -> "bd-abc123"
func ExtractEpicID(branch string) string {
	return epicPattern.FindString(strings.TrimSpace(branch))
}
