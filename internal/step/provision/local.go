// Package provision holds the provision plugins.
package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"tmt/internal/step"
	"tmt/pkg/logging"
)

func init() {
	step.MustRegister(step.Provision, "local", newLocal)
}

// Local uses the host running tmt as the only guest.
type Local struct {
	step.BasePhase
	guest *LocalGuest
}

func newLocal(s *step.Step, data step.PhaseData, logger *logging.Logger) (step.Phase, error) {
	return &Local{BasePhase: step.NewBasePhase(s, data, logger, map[string]interface{}{
		"role": "",
	})}, nil
}

// Wake reattaches the guest when provisioning already finished in an
// earlier invocation.
func (l *Local) Wake() error {
	if l.Step().Status() == step.StatusDone {
		l.guest = l.newGuest()
	}
	return nil
}

func (l *Local) Go(ctx context.Context) error {
	l.Logger().Info("provisioning the local host")
	l.guest = l.newGuest()
	return nil
}

// Guests returns the local guest once provisioned.
func (l *Local) Guests() []step.Guest {
	if l.guest == nil {
		return nil
	}
	return []step.Guest{l.guest}
}

func (l *Local) newGuest() *LocalGuest {
	return &LocalGuest{name: l.Name(), role: l.GetString("role"), logger: l.Logger()}
}

// LocalGuest runs commands through the local shell.
type LocalGuest struct {
	name   string
	role   string
	logger *logging.Logger
}

func (g *LocalGuest) Name() string { return g.name }
func (g *LocalGuest) Role() string { return g.role }

// Execute runs command with "sh -c". A non-zero exit status is reported in
// the result, not as an error.
func (g *LocalGuest) Execute(ctx context.Context, command string, opts step.ExecOptions) (step.ExecResult, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Environment.Pairs()...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children keeping the output pipes open must not block after a kill.
	cmd.WaitDelay = 500 * time.Millisecond

	g.logger.Debug("running %q in %q", command, opts.Dir)
	start := time.Now()
	err := cmd.Run()
	res := step.ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}

	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("command timed out after %s: %w", res.Duration.Round(time.Millisecond), ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("failed to run command: %w", err)
	}
	return res, nil
}
