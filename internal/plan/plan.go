package plan

import (
	"fmt"
	"strings"

	"tmt/internal/environment"
	"tmt/internal/fmf"
	"tmt/internal/step"
	"tmt/internal/workdir"
	"tmt/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Plan is a named metadata node owning one instance of every step.
type Plan struct {
	name   string
	node   *fmf.Node
	tree   *fmf.Tree
	run    Run
	logger *logging.Logger
	// baseLogger is handed to plans created from this one.
	baseLogger *logging.Logger

	fetcher     Fetcher
	stepOptions []step.Option

	workdir  string
	worktree string
	dataDir  string

	ownEnvironment       environment.Environment
	inheritedEnvironment environment.Environment
	ownContext           fmf.Context
	inheritedContext     fmf.Context

	// originalPlan is the importing plan, not owned.
	originalPlan      *Plan
	originalPlanFmfID *fmf.ID
	derived           bool

	// policiesApplied marks plans which already received the run policies.
	policiesApplied bool

	reference      *RemotePlanReference
	importedPlans  []*Plan
	importResolved bool

	standaloneStep string

	discover  *step.DiscoverStep
	provision *step.ProvisionStep
	prepare   *step.Step
	execute   *step.ExecuteStep
	report    *step.Step
	finish    *step.Step
	cleanup   *step.Step
}

// New creates a plan from node. tree is the tree the node comes from, nil
// to use the tree of the node. run may be nil for plans which are only
// inspected; such plans get no workdir.
func New(node *fmf.Node, tree *fmf.Tree, run Run, logger *logging.Logger, opts ...Option) (*Plan, error) {
	if tree == nil {
		tree = node.Tree()
	}
	p := &Plan{
		name:                 node.Name,
		node:                 node,
		tree:                 tree,
		run:                  run,
		baseLogger:           logger,
		inheritedEnvironment: environment.Environment{},
		inheritedContext:     fmf.Context{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logger.Descend(p.name)

	var err error
	if value, ok := node.Get("plan"); ok {
		if p.reference, err = parseReference(value); err != nil {
			return nil, &SpecificationError{Message: fmt.Sprintf("invalid import in plan '%s'", p.name), Err: err}
		}
	}
	if p.ownContext, err = fmf.ContextFromData(node.Data()["context"]); err != nil {
		return nil, &SpecificationError{Message: fmt.Sprintf("invalid context in plan '%s'", p.name), Err: err}
	}

	if run != nil && p.reference == nil {
		if err := p.initWorkdir(); err != nil {
			return nil, err
		}
	}
	if p.ownEnvironment, err = p.loadOwnEnvironment(); err != nil {
		return nil, err
	}

	p.discover = step.NewDiscover(p, p.stepData(step.Discover), p.logger, p.stepOptions...)
	p.provision = step.NewProvision(p, p.stepData(step.Provision), p.logger, p.stepOptions...)
	p.prepare = step.New(step.Prepare, p, p.stepData(step.Prepare), p.logger, p.stepOptions...)
	p.execute = step.NewExecute(p, p.stepData(step.Execute), p.logger, p.stepOptions...)
	p.report = step.New(step.Report, p, p.stepData(step.Report), p.logger, p.stepOptions...)
	p.finish = step.New(step.Finish, p, p.stepData(step.Finish), p.logger, p.stepOptions...)
	p.cleanup = step.New(step.Cleanup, p, p.stepData(step.Cleanup), p.logger, p.stepOptions...)

	for name, overrides := range p.Options().Overrides {
		s, ok := p.Step(name)
		if !ok {
			return nil, &GeneralError{Message: fmt.Sprintf("unknown step '%s'", name)}
		}
		for _, o := range overrides {
			s.AddOverride(o)
		}
	}
	return p, nil
}

func (p *Plan) stepData(name string) interface{} {
	value, _ := p.node.Get(name)
	return value
}

func (p *Plan) Name() string        { return p.name }
func (p *Plan) Node() *fmf.Node     { return p.node }
func (p *Plan) Run() Run            { return p.run }
func (p *Plan) Workdir() string     { return p.workdir }
func (p *Plan) Worktree() string    { return p.worktree }
func (p *Plan) DataDir() string     { return p.dataDir }
func (p *Plan) OriginalPlan() *Plan { return p.originalPlan }
func (p *Plan) IsDerived() bool     { return p.derived }

// Tree returns the metadata tree the plan was created from.
func (p *Plan) Tree() *fmf.Tree { return p.tree }

// OriginalPlanFmfID is the fmf id of the importing plan, nil for plans which
// were not imported.
func (p *Plan) OriginalPlanFmfID() *fmf.ID { return p.originalPlanFmfID }

// Summary returns the one-line plan description.
func (p *Plan) Summary() string { return p.node.GetString("summary", "") }

// Enabled reports whether the plan metadata enables it.
func (p *Plan) Enabled() bool { return p.node.GetBool("enabled", true) }

// FmfID identifies the plan node.
func (p *Plan) FmfID() fmf.ID {
	id := fmf.IDOf(p.node)
	id.Name = p.name
	if p.node.Tree() == nil && p.tree != nil {
		id.URL, id.Ref, id.Path = p.tree.URL, p.tree.Ref, p.tree.Path
	}
	return id
}

// SafeName is the plan name usable as a single path component.
func (p *Plan) SafeName() string { return workdir.SanitizeName(p.name) }

// IsRemotePlanReference reports whether the plan only points to plans in
// another tree.
func (p *Plan) IsRemotePlanReference() bool { return p.reference != nil }

// Reference returns the import definition of a remote plan reference.
func (p *Plan) Reference() *RemotePlanReference { return p.reference }

// Options returns the run options, zero when the plan has no run.
func (p *Plan) Options() Options {
	if p.run == nil {
		return Options{}
	}
	return p.run.Options()
}

func (p *Plan) DryRun() bool { return p.Options().DryRun }
func (p *Plan) Force() bool  { return p.Options().Force }

// StepEnabled reports whether the named step runs in this invocation.
func (p *Plan) StepEnabled(name string) bool {
	if p.standaloneStep != "" {
		return name == p.standaloneStep
	}
	steps := p.Options().Steps
	if len(steps) == 0 {
		return true
	}
	for _, s := range steps {
		if s == name {
			return true
		}
	}
	return false
}

func (p *Plan) Discover() *step.DiscoverStep   { return p.discover }
func (p *Plan) Provision() *step.ProvisionStep { return p.provision }
func (p *Plan) Prepare() *step.Step            { return p.prepare }
func (p *Plan) Execute() *step.ExecuteStep     { return p.execute }
func (p *Plan) Report() *step.Step             { return p.report }
func (p *Plan) Finish() *step.Step             { return p.finish }
func (p *Plan) Cleanup() *step.Step            { return p.cleanup }

// Steps returns all steps in pipeline order.
func (p *Plan) Steps() []*step.Step {
	return []*step.Step{
		p.discover.Step, p.provision.Step, p.prepare, p.execute.Step,
		p.report, p.finish, p.cleanup,
	}
}

// Step looks a step up by name.
func (p *Plan) Step(name string) (*step.Step, bool) {
	for _, s := range p.Steps() {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Header logs the plan name and summary.
func (p *Plan) Header() {
	p.logger.Info("%s", p.name)
	if summary := p.Summary(); summary != "" {
		p.logger.Info("summary: %s", summary)
	}
}

// Show renders the plan for inspection.
func (p *Plan) Show() string {
	var b strings.Builder
	b.WriteString(p.name + "\n")
	if summary := p.Summary(); summary != "" {
		fmt.Fprintf(&b, "    summary %s\n", summary)
	}
	if p.reference != nil {
		out, _ := yaml.Marshal(p.reference)
		b.WriteString("    import\n")
		for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
			b.WriteString("        " + line + "\n")
		}
		return b.String()
	}
	for _, s := range p.Steps() {
		for _, line := range strings.Split(strings.TrimRight(s.Show(), "\n"), "\n") {
			b.WriteString("    " + line + "\n")
		}
	}
	if env := p.Environment(); len(env) > 0 {
		b.WriteString("    environment\n")
		for _, k := range env.Keys() {
			fmt.Fprintf(&b, "        %s: %s\n", k, env[k])
		}
	}
	if ctx := p.Context(); len(ctx) > 0 {
		b.WriteString("    context\n")
		for _, k := range ctx.Keys() {
			fmt.Fprintf(&b, "        %s: %s\n", k, strings.Join(ctx[k], ", "))
		}
	}
	return b.String()
}
