// Package discover holds the discover plugins.
package discover

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"

	"tmt/internal/environment"
	"tmt/internal/fmf"
	"tmt/internal/step"
	"tmt/pkg/logging"
)

func init() {
	step.MustRegister(step.Discover, "fmf", newFmf)
	step.MustRegister(step.Discover, "shell", newShell)
}

// Fmf discovers tests from the metadata tree of the plan: every leaf node
// defining a "test" key.
type Fmf struct {
	step.BasePhase
	names []*regexp.Regexp
}

func newFmf(s *step.Step, data step.PhaseData, logger *logging.Logger) (step.Phase, error) {
	f := &Fmf{BasePhase: step.NewBasePhase(s, data, logger, map[string]interface{}{
		"test":                nil,
		"exclude":             nil,
		"extract-tests-later": false,
	})}
	for _, expr := range f.GetStrings("test") {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid test name pattern '%s': %w", expr, err)
		}
		f.names = append(f.names, re)
	}
	return f, nil
}

// ExtractTestsLater defers test discovery to a later step.
func (f *Fmf) ExtractTestsLater() bool {
	return f.GetBool("extract-tests-later")
}

func (f *Fmf) Go(ctx context.Context) error {
	plan := f.Step().Plan()
	tree := plan.Node().Tree()
	if tree == nil {
		return fmt.Errorf("plan '%s' has no metadata tree to discover tests from", plan.Name())
	}

	var excludes []*regexp.Regexp
	for _, expr := range f.GetStrings("exclude") {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid exclude pattern '%s': %w", expr, err)
		}
		excludes = append(excludes, re)
	}

	var tests []step.Test
	for _, node := range tree.Prune([]string{"test"}, f.names) {
		if matchesAny(excludes, node.Name) {
			continue
		}
		adjusted := node.Copy()
		if err := fmf.Adjust(adjusted, plan.Context(), nil); err != nil {
			return err
		}
		if !adjusted.GetBool("enabled", true) {
			f.Logger().Debug("test %s is disabled", node.Name)
			continue
		}
		test, err := testFromNode(adjusted, tree)
		if err != nil {
			return err
		}
		tests = append(tests, test)
	}

	f.Logger().Info("%d tests discovered", len(tests))
	plan.Discover().AddTests(f.Name(), tests)
	return nil
}

func testFromNode(node *fmf.Node, tree *fmf.Tree) (step.Test, error) {
	env, err := environment.FromData(node.Data()["environment"])
	if err != nil {
		return step.Test{}, fmt.Errorf("test %s: %w", node.Name, err)
	}
	id := fmf.IDOf(node)
	return step.Test{
		Name:        node.Name,
		Test:        node.GetString("test", ""),
		Path:        node.GetString("path", testPath(node, tree)),
		Duration:    node.GetString("duration", ""),
		Environment: env,
		FmfID:       &id,
	}, nil
}

// testPath is the directory of the file which defined the test, relative to
// the tree root.
func testPath(node *fmf.Node, tree *fmf.Tree) string {
	sources := node.Sources()
	if len(sources) == 0 {
		return "/"
	}
	rel, err := filepath.Rel(tree.Root, filepath.Dir(sources[len(sources)-1]))
	if err != nil {
		return "/"
	}
	return path.Join("/", filepath.ToSlash(rel))
}

func matchesAny(patterns []*regexp.Regexp, name string) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
