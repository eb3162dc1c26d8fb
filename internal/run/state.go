package run

import (
	"time"

	"tmt/internal/environment"
	"tmt/internal/fmf"
)

// state is persisted as run.yaml in the run workdir.
type state struct {
	ID          string                  `yaml:"id"`
	Created     time.Time               `yaml:"created"`
	Root        string                  `yaml:"root,omitempty"`
	Plans       []string                `yaml:"plans,omitempty"`
	Environment environment.Environment `yaml:"environment,omitempty"`
	Context     fmf.Context             `yaml:"context,omitempty"`
	Steps       []string                `yaml:"steps,omitempty"`
	DryRun      bool                    `yaml:"dry-run,omitempty"`
}

func (r *Run) save() error {
	s := state{
		ID:          r.id,
		Created:     r.created,
		Environment: r.options.Environment.Merge(r.environment),
		Context:     r.options.Context,
		Steps:       r.options.Steps,
		DryRun:      r.options.DryRun,
	}
	if r.tree != nil {
		s.Root = r.tree.Root
	}
	for _, p := range r.snapshot() {
		s.Plans = append(s.Plans, p.Name())
	}
	return r.storage.Save("", stateFile, s)
}
