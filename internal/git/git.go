package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"tmt/pkg/logging"

	"github.com/sethvargo/go-retry"
)

// Client performs git operations. Network operations (clone, fetch) are
// retried a bounded number of times; local ones are not.
type Client struct {
	pool       *Pool
	retries    uint64
	retryDelay time.Duration
}

// NewClient creates a Client sharing pool, retrying failed network
// operations up to retries times with exponential backoff from retryDelay.
func NewClient(pool *Pool, retries int, retryDelay time.Duration) *Client {
	if retries < 0 {
		retries = 0
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Client{pool: pool, retries: uint64(retries), retryDelay: retryDelay}
}

// CloneOptions tweak a clone.
type CloneOptions struct {
	// Shallow clones only the tip of Ref (or of the default branch).
	Shallow bool
	Ref     string
}

// Clone clones url into dest. A failed attempt removes dest before retrying.
func (c *Client) Clone(ctx context.Context, url, dest string, opts CloneOptions) error {
	args := []string{"clone"}
	if opts.Shallow {
		args = append(args, "--depth=1")
		if opts.Ref != "" {
			args = append(args, "--branch", opts.Ref)
		}
	}
	args = append(args, url, dest)

	return c.withRetry(ctx, "clone "+url, func(ctx context.Context) error {
		if _, err := c.run(ctx, "", args...); err != nil {
			if rmErr := os.RemoveAll(dest); rmErr != nil {
				logging.Warn("Git", "Failed to clean up %s after failed clone: %v", dest, rmErr)
			}
			return err
		}
		return nil
	})
}

// Fetch updates all refs of the repository in dir.
func (c *Client) Fetch(ctx context.Context, dir string) error {
	return c.withRetry(ctx, "fetch in "+dir, func(ctx context.Context) error {
		_, err := c.run(ctx, dir, "fetch", "--tags", "--force", "origin")
		return err
	})
}

// Checkout switches the working tree in dir to ref.
func (c *Client) Checkout(ctx context.Context, dir, ref string) error {
	_, err := c.run(ctx, dir, "checkout", "--quiet", ref)
	return err
}

// Head returns the commit currently checked out in dir.
func (c *Client) Head(ctx context.Context, dir string) (string, error) {
	out, err := c.run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Toplevel returns the root of the git work tree containing dir.
func (c *Client) Toplevel(ctx context.Context, dir string) (string, error) {
	out, err := c.run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) withRetry(ctx context.Context, what string, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.retryDelay))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			logging.Warn("Git", "Attempt %d to %s failed: %v", attempt, what, err)
			return retry.RetryableError(err)
		}
		return err
	})
}

// CommandError reports a failed git invocation together with its stderr.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	var out string
	err := c.pool.Run(ctx, func() error {
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		logging.Debug("Git", "Running git %s (in %q)", strings.Join(args, " "), dir)
		if err := cmd.Run(); err != nil {
			return &CommandError{Args: args, Stderr: stderr.String(), Err: err}
		}
		out = stdout.String()
		return nil
	})
	return out, err
}
