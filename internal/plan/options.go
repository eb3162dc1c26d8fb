package plan

import (
	"context"

	"tmt/internal/environment"
	"tmt/internal/fmf"
	"tmt/internal/step"
)

// Version is reported to tests as TMT_VERSION.
var Version = "dev"

// Options are the run-wide settings given on the command line.
type Options struct {
	// Environment holds --environment values.
	Environment environment.Environment
	// Context holds --context values. It is never inherited by imported
	// plans.
	Context fmf.Context
	DryRun  bool
	// Force re-runs steps which are already done.
	Force bool
	// Steps limits the run to the named steps. Empty enables all.
	Steps []string
	// Overrides are applied to the named steps of every plan.
	Overrides map[string][]step.Override
	// MaxTests splits plans with more tests into several plans.
	MaxTests int
	// Repeat runs every plan the given number of times.
	Repeat int
}

// Run is the collaborator owning a set of plans.
type Run interface {
	Workdir() string
	Environment() environment.Environment
	Options() Options
	Fetcher() Fetcher
	// SwapPlans replaces original with replacements in the run's plan list.
	SwapPlans(original *Plan, replacements []*Plan) error
	// ApplyPolicies applies run policies to newly created plans.
	ApplyPolicies(plans []*Plan) error
}

// Fetcher retrieves remote metadata trees.
type Fetcher interface {
	// Clone clones url into dest, reusing an existing clone.
	Clone(ctx context.Context, url, dest string) error
	// ShallowClone makes a throwaway clone of the default branch.
	ShallowClone(ctx context.Context, url, dest string) error
	Checkout(ctx context.Context, dir, ref string) error
	// FetchCached returns the tree at id.URL, id.Ref and id.Path.
	FetchCached(ctx context.Context, id fmf.ID) (*fmf.Tree, error)
}

// Option configures a Plan.
type Option func(*Plan)

// WithName overrides the node name.
func WithName(name string) Option {
	return func(p *Plan) { p.name = name }
}

// WithInheritedEnvironment sets the environment passed down by an importing
// plan.
func WithInheritedEnvironment(env environment.Environment) Option {
	return func(p *Plan) { p.inheritedEnvironment = env.Copy() }
}

// WithInheritedContext sets the context passed down by an importing plan.
func WithInheritedContext(ctx fmf.Context) Option {
	return func(p *Plan) { p.inheritedContext = ctx.Copy() }
}

// WithFetcher sets the fetcher used to resolve remote plans. Defaults to the
// fetcher of the run.
func WithFetcher(f Fetcher) Option {
	return func(p *Plan) { p.fetcher = f }
}

// WithOriginalPlan marks the plan as imported by original.
func WithOriginalPlan(original *Plan) Option {
	return func(p *Plan) {
		p.originalPlan = original
		id := original.FmfID()
		p.originalPlanFmfID = &id
	}
}

// WithStepOptions passes options to every step of the plan.
func WithStepOptions(opts ...step.Option) Option {
	return func(p *Plan) { p.stepOptions = append(p.stepOptions, opts...) }
}
