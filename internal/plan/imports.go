package plan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"tmt/internal/fmf"
	"tmt/internal/template"

	"gopkg.in/yaml.v3"
)

// ImportingPolicy decides how imported plans relate to the importing one.
type ImportingPolicy string

const (
	// ImportReplace gives the imported plan the name of the importing plan.
	ImportReplace ImportingPolicy = "replace"
	// ImportBecomeParent nests imported plans below the importing plan.
	ImportBecomeParent ImportingPolicy = "become-parent"
)

// ImportScope decides how many matching plans are imported.
type ImportScope string

const (
	ScopeFirstPlanOnly  ImportScope = "first-plan-only"
	ScopeSinglePlanOnly ImportScope = "single-plan-only"
	ScopeAllPlans       ImportScope = "all-plans"
)

// RemotePlanReference is the "plan.import" definition of a plan.
type RemotePlanReference struct {
	URL  string `yaml:"url,omitempty"`
	Ref  string `yaml:"ref,omitempty"`
	Path string `yaml:"path,omitempty"`
	// Name is a regular expression matched against plan names.
	Name               string          `yaml:"name,omitempty"`
	Importing          ImportingPolicy `yaml:"importing"`
	Scope              ImportScope     `yaml:"scope"`
	InheritContext     bool            `yaml:"inherit-context"`
	InheritEnvironment bool            `yaml:"inherit-environment"`
	AdjustPlans        []fmf.Rule      `yaml:"adjust-plans,omitempty"`

	nameRe *regexp.Regexp
}

// FmfID returns the reference as an fmf id.
func (r *RemotePlanReference) FmfID() fmf.ID {
	return fmf.ID{URL: r.URL, Ref: r.Ref, Path: r.Path, Name: r.Name}
}

// IsDynamicRef reports whether the ref names a file holding the real ref.
func (r *RemotePlanReference) IsDynamicRef() bool {
	return strings.HasPrefix(r.Ref, "@")
}

func parseReference(value interface{}) (*RemotePlanReference, error) {
	planData, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("'plan' must be a mapping, got %T", value)
	}
	raw, ok := planData["import"]
	if !ok {
		return nil, nil
	}
	data, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("'plan.import' must be a mapping, got %T", raw)
	}

	ref := &RemotePlanReference{
		Importing:          ImportReplace,
		Scope:              ScopeFirstPlanOnly,
		InheritContext:     true,
		InheritEnvironment: true,
	}
	for key, value := range data {
		switch key {
		case "url", "ref", "path", "name":
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("'%s' must be a string, got %T", key, value)
			}
			switch key {
			case "url":
				ref.URL = s
			case "ref":
				ref.Ref = s
			case "path":
				ref.Path = s
			case "name":
				ref.Name = s
			}
		case "importing":
			switch p := ImportingPolicy(fmt.Sprint(value)); p {
			case ImportReplace, ImportBecomeParent:
				ref.Importing = p
			default:
				return nil, fmt.Errorf("invalid importing policy '%v'", value)
			}
		case "scope":
			switch s := ImportScope(fmt.Sprint(value)); s {
			case ScopeFirstPlanOnly, ScopeSinglePlanOnly, ScopeAllPlans:
				ref.Scope = s
			default:
				return nil, fmt.Errorf("invalid scope '%v'", value)
			}
		case "inherit-context", "inherit-environment":
			b, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("'%s' must be a boolean, got %T", key, value)
			}
			if key == "inherit-context" {
				ref.InheritContext = b
			} else {
				ref.InheritEnvironment = b
			}
		case "adjust-plans":
			rules, err := fmf.RulesFromData(value)
			if err != nil {
				return nil, fmt.Errorf("invalid adjust-plans: %w", err)
			}
			ref.AdjustPlans = rules
		default:
			return nil, fmt.Errorf("unknown key '%s'", key)
		}
	}

	re, err := regexp.Compile(ref.Name)
	if err != nil {
		return nil, fmt.Errorf("invalid plan name pattern '%s': %w", ref.Name, err)
	}
	ref.nameRe = re
	return ref, nil
}

// ResolveImports returns the plans which take the place of p in the run:
// p itself for a regular plan, the imported plans for a remote plan
// reference. The result is computed once.
func (p *Plan) ResolveImports(ctx context.Context) ([]*Plan, error) {
	if p.importResolved {
		return p.importedPlans, nil
	}
	if p.reference == nil {
		p.importedPlans = []*Plan{p}
		p.importResolved = true
		return p.importedPlans, nil
	}

	plans, err := p.resolveImports(ctx)
	if err != nil {
		return nil, &ResolutionError{Plan: p.name, Err: err}
	}
	p.importedPlans = plans
	p.importResolved = true
	return plans, nil
}

func (p *Plan) resolveImports(ctx context.Context) ([]*Plan, error) {
	ref := p.reference
	p.logger.Info("importing plans from %s", ref.FmfID())

	tree, err := p.fetchTree(ctx, ref)
	if err != nil {
		return nil, err
	}

	candidates := tree.Prune([]string{"execute"}, []*regexp.Regexp{ref.nameRe})
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no plans matching '%s' found in %s", ref.Name, ref.FmfID())
	}

	if len(candidates) > 1 {
		switch ref.Scope {
		case ScopeFirstPlanOnly:
			for _, node := range candidates[1:] {
				p.logger.Warn("skipping plan '%s', only the first matching plan is imported", node.Name)
			}
			candidates = candidates[:1]
		case ScopeSinglePlanOnly:
			return nil, &GeneralError{Message: fmt.Sprintf(
				"plan '%s' matches more than one plan (%s, %s) but scope is %s",
				p.name, candidates[0].Name, candidates[1].Name, ref.Scope)}
		case ScopeAllPlans:
			if ref.Importing == ImportReplace {
				return nil, &GeneralError{Message: fmt.Sprintf(
					"plan '%s' cannot be replaced by multiple plans, use importing %s with scope %s",
					p.name, ImportBecomeParent, ScopeAllPlans)}
			}
		}
	}

	plans := make([]*Plan, 0, len(candidates))
	for _, node := range candidates {
		imported, err := p.convertImported(node, tree)
		if err != nil {
			return nil, err
		}
		plans = append(plans, imported)
	}
	return plans, nil
}

// convertImported turns a remote plan node into a plan owned by the run.
func (p *Plan) convertImported(node *fmf.Node, tree *fmf.Tree) (*Plan, error) {
	ref := p.reference
	n := node.Copy()

	nodeContext, err := fmf.ContextFromData(n.Data()["context"])
	if err != nil {
		return nil, &SpecificationError{Message: fmt.Sprintf("invalid context in plan '%s'", node.Name), Err: err}
	}
	alteration := fmf.Context{}
	if ref.InheritContext {
		alteration = alteration.Merge(p.InheritableContext())
	}
	alteration = alteration.Merge(p.cliContext(), nodeContext)
	if err := fmf.Adjust(n, alteration, ref.AdjustPlans); err != nil {
		return nil, &SpecificationError{Message: fmt.Sprintf("cannot adjust plan '%s'", node.Name), Err: err}
	}

	if !p.Enabled() {
		n.Set("enabled", false)
	}
	switch ref.Importing {
	case ImportReplace:
		n.Name = p.name
	case ImportBecomeParent:
		n.Name = strings.TrimSuffix(p.name, "/") + node.Name
	}

	opts := []Option{WithOriginalPlan(p), WithStepOptions(p.stepOptions...)}
	if p.fetcher != nil {
		opts = append(opts, WithFetcher(p.fetcher))
	}
	if ref.InheritEnvironment {
		opts = append(opts, WithInheritedEnvironment(p.InheritableEnvironment()))
	}
	if ref.InheritContext {
		opts = append(opts, WithInheritedContext(p.InheritableContext()))
	}
	return New(n, tree, p.run, p.baseLogger, opts...)
}

func (p *Plan) resolveFetcher() (Fetcher, error) {
	if p.fetcher != nil {
		return p.fetcher, nil
	}
	if p.run != nil && p.run.Fetcher() != nil {
		return p.run.Fetcher(), nil
	}
	return nil, &GeneralError{Message: "no fetcher available to import remote plans"}
}

// fetchTree retrieves the referenced tree. A run executing plans clones into
// its workdir, keyed by the plan name, and reuses the clone on later calls.
// Without an executing run the shared fetch cache is used.
func (p *Plan) fetchTree(ctx context.Context, ref *RemotePlanReference) (*fmf.Tree, error) {
	if ref.URL == "" {
		if p.tree == nil {
			return nil, &GeneralError{Message: "import without url requires a local metadata tree"}
		}
		return p.tree, nil
	}
	fetcher, err := p.resolveFetcher()
	if err != nil {
		return nil, err
	}

	if p.run != nil && !p.DryRun() {
		dest := filepath.Join(p.run.Workdir(), "import", p.SafeName())
		if err := fetcher.Clone(ctx, ref.URL, dest); err != nil {
			return nil, err
		}
		gitRef := ref.Ref
		if ref.IsDynamicRef() {
			if gitRef, err = p.resolveDynamicRef(dest, ref.Ref); err != nil {
				return nil, err
			}
		}
		if gitRef != "" {
			if err := fetcher.Checkout(ctx, dest, gitRef); err != nil {
				return nil, err
			}
		}
		tree, err := fmf.Load(filepath.Join(dest, ref.Path))
		if err != nil {
			return nil, err
		}
		tree.URL, tree.Ref, tree.Path = ref.URL, gitRef, ref.Path
		return tree, nil
	}

	gitRef := ref.Ref
	if ref.IsDynamicRef() {
		tmp, err := os.MkdirTemp("", "tmt-dynamic-ref-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tmp)
		clone := filepath.Join(tmp, "repo")
		if err := fetcher.ShallowClone(ctx, ref.URL, clone); err != nil {
			return nil, err
		}
		if gitRef, err = p.resolveDynamicRef(clone, ref.Ref); err != nil {
			return nil, err
		}
	}
	return fetcher.FetchCached(ctx, fmf.ID{URL: ref.URL, Ref: gitRef, Path: ref.Path})
}

// resolveDynamicRef reads the ref file named by "@path" in repoDir. The file
// holds a "ref" key, optionally adjusted by rules evaluated against the plan
// context. Values of the adjusted file are rendered as templates with the
// plan context and environment:
//
//	ref: main
//	adjust:
//	  - when: distro == fedora-40
//	    ref: f40
func (p *Plan) resolveDynamicRef(repoDir, raw string) (string, error) {
	file := filepath.Join(repoDir, strings.TrimPrefix(raw, "@"))
	content, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read dynamic ref file: %w", err)
	}
	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return "", fmt.Errorf("invalid dynamic ref file %s: %w", raw, err)
	}

	node := fmf.NewNode("/dynamic-ref", data)
	if err := fmf.Adjust(node, p.Context(), nil); err != nil {
		return "", err
	}
	rendered, err := template.New().Replace(node.Data(), template.PlanValues(p.Context(), p.Environment()))
	if err != nil {
		return "", fmt.Errorf("cannot render dynamic ref file %s: %w", raw, err)
	}
	ref, _ := rendered.(map[string]interface{})["ref"].(string)
	if ref == "" {
		return "", fmt.Errorf("dynamic ref file %s does not define 'ref'", raw)
	}
	p.logger.Debug("dynamic ref %s resolved to %s", raw, ref)
	return strings.TrimSpace(ref), nil
}
