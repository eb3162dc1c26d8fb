package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"tmt/internal/config"
	"tmt/internal/environment"
	"tmt/internal/fetch"
	"tmt/internal/fmf"
	"tmt/internal/git"
	"tmt/internal/plan"
	"tmt/internal/step"
	"tmt/internal/workdir"
	"tmt/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const stateFile = "run"

var _ plan.Run = (*Run)(nil)

// Options configure a run in addition to the options shared with plans.
type Options struct {
	plan.Options

	// ID is either a run id placed below the workdir root or a path to the
	// run workdir. Empty creates a new run.
	ID string
	// Names are regular expressions selecting plans. Empty selects all.
	Names []string
	// EnvironmentFiles are read into the run environment.
	EnvironmentFiles []string
	// PolicyFile holds step overrides applied to matching plans.
	PolicyFile string
	// MaxParallel overrides the configured number of plans running at once.
	MaxParallel int
}

// Run owns the plans selected from a metadata tree and executes them.
type Run struct {
	id          string
	workdir     string
	tree        *fmf.Tree
	cfg         config.Config
	options     Options
	names       []*regexp.Regexp
	environment environment.Environment
	policies    []Policy
	fetcher     *fetch.Fetcher
	storage     *workdir.Storage
	logger      *logging.Logger

	mu       sync.Mutex
	plans    []*plan.Plan
	pending  []*plan.Plan
	resolved bool
	created  time.Time
}

// New prepares a run over tree. An existing run workdir given by
// Options.ID is reused together with its id.
func New(cfg config.Config, tree *fmf.Tree, options Options) (*Run, error) {
	r := &Run{
		tree:    tree,
		cfg:     cfg,
		options: options,
		logger:  logging.NewLogger("run"),
		created: time.Now().UTC(),
	}

	for _, name := range options.Names {
		re, err := regexp.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("invalid plan name pattern '%s': %w", name, err)
		}
		r.names = append(r.names, re)
	}

	env := environment.Environment{}
	for _, path := range options.EnvironmentFiles {
		fromFile, err := environment.FromFile(path, false)
		if err != nil {
			return nil, err
		}
		env = env.Merge(fromFile)
	}
	r.environment = env

	if options.PolicyFile != "" {
		policies, err := LoadPolicies(options.PolicyFile)
		if err != nil {
			return nil, err
		}
		r.policies = policies
	}

	if err := r.initWorkdir(); err != nil {
		return nil, err
	}

	client := git.NewClient(git.NewPool(cfg.Git.Jobs), cfg.Git.Retries, cfg.Git.RetryDelay)
	fetcher, err := fetch.New(client, cfg.CacheDir, cfg.FetchCacheSize)
	if err != nil {
		return nil, err
	}
	r.fetcher = fetcher

	if err := r.save(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Run) initWorkdir() error {
	id := r.options.ID
	switch {
	case id == "":
		r.id = uuid.NewString()
		r.workdir = filepath.Join(r.cfg.WorkdirRoot, "run-"+r.id[:8])
	case filepath.IsAbs(id) || filepath.Base(id) != id:
		r.workdir = id
	default:
		r.workdir = filepath.Join(r.cfg.WorkdirRoot, id)
	}
	if err := os.MkdirAll(r.workdir, 0755); err != nil {
		return fmt.Errorf("failed to create run workdir: %w", err)
	}
	r.storage = workdir.NewStorage(r.workdir)

	var saved state
	err := r.storage.Load("", stateFile, &saved)
	switch {
	case err == nil:
		r.logger.Info("reusing run %s in %s", saved.ID, r.workdir)
		if saved.ID != "" {
			r.id = saved.ID
		}
		if !saved.Created.IsZero() {
			r.created = saved.Created
		}
	case !errors.Is(err, workdir.ErrNotFound):
		return err
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	return nil
}

func (r *Run) ID() string                           { return r.id }
func (r *Run) Workdir() string                      { return r.workdir }
func (r *Run) Environment() environment.Environment { return r.environment.Copy() }
func (r *Run) Options() plan.Options                { return r.options.Options }
func (r *Run) Fetcher() plan.Fetcher                { return r.fetcher }

// Close releases the fetch cache.
func (r *Run) Close() {
	r.fetcher.Close()
}

// Plans returns the plans of the run: enabled plans matching the name
// filters, with remote plan references replaced by the plans they import.
// Selection happens once; later calls also see plans swapped in by
// shapers.
func (r *Run) Plans(ctx context.Context) ([]*plan.Plan, error) {
	r.mu.Lock()
	resolved := r.resolved
	r.mu.Unlock()
	if resolved {
		return r.snapshot(), nil
	}

	var plans []*plan.Plan
	for _, node := range SelectPlans(r.tree, r.names) {
		n := node.Copy()
		if err := fmf.Adjust(n, r.options.Context, nil); err != nil {
			return nil, &plan.SpecificationError{Message: fmt.Sprintf("cannot adjust plan '%s'", n.Name), Err: err}
		}
		if !n.GetBool("enabled", true) {
			r.logger.Info("plan %s is disabled", n.Name)
			continue
		}

		p, err := plan.New(n, r.tree, r, nil)
		if err != nil {
			return nil, err
		}
		resolvedPlans, err := p.ResolveImports(ctx)
		if err != nil {
			return nil, err
		}
		for _, imported := range resolvedPlans {
			if !imported.Enabled() {
				r.logger.Info("imported plan %s is disabled", imported.Name())
				continue
			}
			plans = append(plans, imported)
		}
	}
	if err := r.ApplyPolicies(plans); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.plans = plans
	r.resolved = true
	r.mu.Unlock()
	if err := r.save(); err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

func (r *Run) snapshot() []*plan.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*plan.Plan(nil), r.plans...)
}

// SelectPlans returns plan nodes of tree matching any of names: leaves
// defining "execute" or a "plan" import.
func SelectPlans(tree *fmf.Tree, names []*regexp.Regexp) []*fmf.Node {
	var out []*fmf.Node
	tree.Walk(func(n *fmf.Node) bool {
		if !n.Leaf() || !(n.Has("execute") || n.Has("plan")) {
			return true
		}
		if len(names) > 0 {
			matched := false
			for _, re := range names {
				if re.MatchString(n.Name) {
					matched = true
					break
				}
			}
			if !matched {
				return true
			}
		}
		out = append(out, n)
		return true
	})
	return out
}

// SwapPlans replaces original by replacements. The replacements are run by
// Go once the plans currently executing finish.
func (r *Run) SwapPlans(original *plan.Plan, replacements []*plan.Plan) error {
	r.mu.Lock()
	index := -1
	for i, p := range r.plans {
		if p == original {
			index = i
			break
		}
	}
	if index < 0 {
		r.mu.Unlock()
		return &plan.GeneralError{Message: fmt.Sprintf("plan '%s' is not part of the run", original.Name())}
	}
	plans := make([]*plan.Plan, 0, len(r.plans)+len(replacements)-1)
	plans = append(plans, r.plans[:index]...)
	plans = append(plans, replacements...)
	plans = append(plans, r.plans[index+1:]...)
	r.plans = plans
	r.pending = append(r.pending, replacements...)
	r.mu.Unlock()

	r.logger.Info("plan %s replaced by %d plans", original.Name(), len(replacements))
	return r.save()
}

// ApplyPolicies adds the step overrides of matching policies to plans.
func (r *Run) ApplyPolicies(plans []*plan.Plan) error {
	for _, policy := range r.policies {
		for _, p := range plans {
			if !policy.Matches(p.Name()) {
				continue
			}
			s, ok := p.Step(policy.Step)
			if !ok {
				return &plan.GeneralError{Message: fmt.Sprintf("unknown step '%s' in policy", policy.Step)}
			}
			r.logger.Debug("applying policy to %s step %s", p.Name(), policy.Step)
			s.AddOverride(policy.Override)
		}
	}
	return nil
}

func (r *Run) maxParallel() int {
	limit := r.options.MaxParallel
	if limit <= 0 {
		limit = r.cfg.MaxParallelPlans
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

// Go executes all plans. A failing plan does not stop the others; the
// errors of all plans are returned together.
func (r *Run) Go(ctx context.Context) error {
	queue, err := r.Plans(ctx)
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		r.logger.Warn("no plans found")
		return nil
	}

	var (
		errsMu sync.Mutex
		errs   []error
	)
	for len(queue) > 0 {
		var g errgroup.Group
		g.SetLimit(r.maxParallel())
		for _, p := range queue {
			g.Go(func() error {
				if err := p.Go(ctx); err != nil {
					r.logger.Error(err, "plan %s failed", p.Name())
					errsMu.Lock()
					errs = append(errs, fmt.Errorf("plan '%s': %w", p.Name(), err))
					errsMu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		r.mu.Lock()
		queue, r.pending = r.pending, nil
		r.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Results returns the execute results of every plan, keyed by plan name.
func (r *Run) Results() map[string][]step.Result {
	out := map[string][]step.Result{}
	for _, p := range r.snapshot() {
		out[p.Name()] = p.Execute().Results()
	}
	return out
}
