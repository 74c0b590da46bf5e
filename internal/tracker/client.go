// Package tracker queries the beads (bd) command-line tracker for work items.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/beads-continuation/internal/shell"
)

const (
	// DefaultCommand is the beads CLI binary name.
	DefaultCommand = "bd"
	// DefaultTimeout bounds a single bd invocation.
	DefaultTimeout = 10 * time.Second

	// StatusInProgress is the bd status for claimed, unfinished work.
	StatusInProgress = "in_progress"
)

// WorkItem is a bead as reported by `bd ... --json`. The tracker owns it; callers
// never mutate one.
type WorkItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Type     string `json:"issue_type,omitempty"`
	Priority *int   `json:"priority,omitempty"`
}

// Client wraps the bd CLI.
type Client struct {
	command string
	dir     string
	timeout time.Duration
	exec    shell.ExecFunc
}

// Option customizes Client construction.
type Option func(*Client)

// WithCommand overrides the bd binary.
func WithCommand(command string) Option {
	return func(c *Client) {
		if command = strings.TrimSpace(command); command != "" {
			c.command = command
		}
	}
}

// WithDir sets the working directory bd runs in.
func WithDir(dir string) Option {
	return func(c *Client) {
		c.dir = strings.TrimSpace(dir)
	}
}

// WithTimeout bounds each invocation. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithExec replaces the process runner, mostly for tests.
func WithExec(fn shell.ExecFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.exec = fn
		}
	}
}

// NewClient returns a Client that shells out to bd.
func NewClient(opts ...Option) *Client {
	c := &Client{
		command: DefaultCommand,
		timeout: DefaultTimeout,
		exec:    shell.Run,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// IsInitialized reports whether `bd status` exits cleanly in the project.
func (c *Client) IsInitialized(ctx context.Context) bool {
	_, err := c.run(ctx, "status")
	return err == nil
}

// ListInProgress returns beads whose status is in_progress, in tracker order.
func (c *Client) ListInProgress(ctx context.Context) ([]WorkItem, error) {
	out, err := c.run(ctx, "list", "--status", StatusInProgress, "--json")
	if err != nil {
		return nil, fmt.Errorf("tracker: list in progress: %w", err)
	}
	items, err := parseWorkItems(out)
	if err != nil {
		return nil, fmt.Errorf("tracker: list in progress: %w", err)
	}
	return items, nil
}

// ListReady returns unblocked beads, scoped to epicID when it is non-empty.
func (c *Client) ListReady(ctx context.Context, epicID string) ([]WorkItem, error) {
	args := []string{"ready"}
	if epicID = strings.TrimSpace(epicID); epicID != "" {
		args = append(args, "--parent", epicID)
	}
	args = append(args, "--json")
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("tracker: list ready: %w", err)
	}
	items, err := parseWorkItems(out)
	if err != nil {
		return nil, fmt.Errorf("tracker: list ready: %w", err)
	}
	return items, nil
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.exec(ctx, c.dir, c.command, args...)
}

// parseWorkItems decodes a JSON array of beads. Empty output and any JSON value
// that is not an array both yield an empty list.
func parseWorkItems(raw []byte) ([]WorkItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []WorkItem{}, nil
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("decode bd json: invalid output")
	}
	if trimmed[0] != '[' {
		return []WorkItem{}, nil
	}
	var items []WorkItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode bd json: %w", err)
	}
	for i := range items {
		items[i].ID = strings.TrimSpace(items[i].ID)
		items[i].Title = strings.TrimSpace(items[i].Title)
		items[i].Status = strings.TrimSpace(items[i].Status)
	}
	if items == nil {
		items = []WorkItem{}
	}
	return items, nil
}
