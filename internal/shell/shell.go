// Package shell runs the external CLIs (bd, git) the daemon depends on.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecFunc runs name with args inside dir and returns captured stdout.
// A non-zero exit must be reported as an error. Clients accept one so tests
// can script command output.
type ExecFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Run is the os/exec ExecFunc. Stderr is folded into the returned error.
func Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- callers pass a configured binary and fixed arguments.
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w (%s)", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
