package step

import (
	"context"
	"fmt"
	"time"

	"tmt/internal/environment"
	"tmt/internal/fmf"
)

// Step names in pipeline order.
const (
	Discover  = "discover"
	Provision = "provision"
	Prepare   = "prepare"
	Execute   = "execute"
	Report    = "report"
	Finish    = "finish"
	Cleanup   = "cleanup"
)

// Names lists all steps in the order they run.
var Names = []string{Discover, Provision, Prepare, Execute, Report, Finish, Cleanup}

// DefaultHow is the plugin used by a step whose metadata names none.
var DefaultHow = map[string]string{
	Discover:  "shell",
	Provision: "local",
	Prepare:   "shell",
	Execute:   "tmt",
	Report:    "display",
	Finish:    "shell",
	Cleanup:   "tmt",
}

// IsValidName reports whether name is one of the known steps.
func IsValidName(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Status is the persisted progress of a step.
type Status string

const (
	StatusNone    Status = ""
	StatusRunning Status = "running"
	StatusDone    Status = "done"
)

func (s Status) String() string {
	if s == StatusNone {
		return "todo"
	}
	return string(s)
}

func (s Status) valid() bool {
	return s == StatusNone || s == StatusRunning || s == StatusDone
}

// Test is a single discovered test.
type Test struct {
	Name   string `yaml:"name"`
	Serial int    `yaml:"serial-number"`
	// Phase is the discover phase which found the test.
	Phase string `yaml:"discover-phase,omitempty"`
	// Test is the shell command to run.
	Test string `yaml:"test"`
	// Path is the test directory relative to the plan worktree.
	Path        string            `yaml:"path,omitempty"`
	Duration    string            `yaml:"duration,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	FmfID       *fmf.ID           `yaml:"fmf-id,omitempty"`
}

// Timeout parses the test duration, falling back to def.
func (t Test) Timeout(def time.Duration) time.Duration {
	if t.Duration == "" {
		return def
	}
	d, err := time.ParseDuration(t.Duration)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Outcome is the result of running a test.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeError   Outcome = "error"
	OutcomeSkip    Outcome = "skip"
)

// Result records the outcome of one test on one guest.
type Result struct {
	Name     string  `yaml:"name"`
	Serial   int     `yaml:"serial-number"`
	Outcome  Outcome `yaml:"result"`
	Guest    string  `yaml:"guest,omitempty"`
	Duration string  `yaml:"duration,omitempty"`
	Log      string  `yaml:"log,omitempty"`
	Note     string  `yaml:"note,omitempty"`
}

func (r Result) key() string {
	return fmt.Sprintf("%s:%d", r.Name, r.Serial)
}

// ExecOptions configure a command run on a guest.
type ExecOptions struct {
	Dir         string
	Environment environment.Environment
	Timeout     time.Duration
}

// ExecResult is the captured output of a guest command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Guest is a provisioned environment tests run on.
type Guest interface {
	Name() string
	Role() string
	Execute(ctx context.Context, command string, opts ExecOptions) (ExecResult, error)
}

// GuestData is the persisted description of a guest.
type GuestData struct {
	Name  string `yaml:"name"`
	Role  string `yaml:"role,omitempty"`
	How   string `yaml:"how"`
	Phase string `yaml:"phase"`
}
