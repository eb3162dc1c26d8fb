package plan

import (
	"os"
	"path/filepath"

	"tmt/internal/environment"
	"tmt/internal/fmf"
)

const (
	environmentFileName  = "variables.env"
	sourceScriptFileName = "plan-source-script.sh"
)

// EnvironmentFile is the file in the data directory where steps persist
// variables for later reads, empty without a data directory.
func (p *Plan) EnvironmentFile() string {
	if p.dataDir == "" {
		return ""
	}
	return filepath.Join(p.dataDir, environmentFileName)
}

// SourceScript is the shell script steps may populate for tests to source.
func (p *Plan) SourceScript() string {
	if p.dataDir == "" {
		return ""
	}
	return filepath.Join(p.dataDir, sourceScriptFileName)
}

func (p *Plan) loadOwnEnvironment() (environment.Environment, error) {
	env, err := environment.FromData(p.node.Data()["environment"])
	if err != nil {
		return nil, &SpecificationError{Message: "invalid environment in plan '" + p.name + "'", Err: err}
	}
	files := stringList(p.node.Data()["environment-file"])
	if len(files) == 0 {
		return env, nil
	}
	root := ""
	if p.tree != nil {
		root = p.tree.Root
	}
	fromFiles, err := environment.FromFiles(root, files)
	if err != nil {
		return nil, &SpecificationError{Message: "invalid environment-file in plan '" + p.name + "'", Err: err}
	}
	// Values given directly in the metadata win over files.
	return fromFiles.Merge(env), nil
}

// EnvironmentLayers returns the sources of the plan environment in
// increasing precedence. Every call reads the environment file again.
func (p *Plan) EnvironmentLayers() []environment.Layer {
	fromFile := environment.Environment{}
	if path := p.EnvironmentFile(); path != "" {
		if env, err := environment.FromFile(path, true); err != nil {
			p.logger.Warn("ignoring %s: %v", path, err)
		} else {
			fromFile = env
		}
	}

	var cli, fromRun environment.Environment
	if p.run != nil {
		cli = p.run.Options().Environment
		fromRun = p.run.Environment()
	}

	return []environment.Layer{
		{Name: "plan environment file", Values: fromFile},
		{Name: "plan metadata", Values: p.ownEnvironment, Inheritable: true},
		{Name: "importing plan", Values: p.inheritedEnvironment, Inheritable: true},
		{Name: "command line", Values: cli},
		{Name: "run", Values: fromRun},
		{Name: "intrinsic", Values: p.intrinsicEnvironment()},
	}
}

// Environment is the composed environment tests and scripts run with.
func (p *Plan) Environment() environment.Environment {
	return environment.Compose(p.EnvironmentLayers()...)
}

// InheritableEnvironment is the part of the environment passed on to
// imported plans: metadata values and values inherited from the importing
// plan, never command line or run values.
func (p *Plan) InheritableEnvironment() environment.Environment {
	return environment.ComposeInheritable(p.EnvironmentLayers()...)
}

func (p *Plan) intrinsicEnvironment() environment.Environment {
	env := environment.Environment{"TMT_VERSION": Version}
	if p.worktree != "" {
		env["TMT_TREE"] = p.worktree
	}
	if p.dataDir != "" {
		if _, err := os.Stat(p.dataDir); err == nil {
			env["TMT_PLAN_DATA"] = p.dataDir
			env["TMT_PLAN_ENVIRONMENT_FILE"] = p.EnvironmentFile()
			env["TMT_PLAN_SOURCE_SCRIPT"] = p.SourceScript()
		}
	}
	return env
}

// Context is the fmf context of the plan: its own "context" key, then the
// context inherited from the importing plan, then the command line.
func (p *Plan) Context() fmf.Context {
	return p.InheritableContext().Merge(p.cliContext())
}

// InheritableContext excludes the command line context.
func (p *Plan) InheritableContext() fmf.Context {
	return p.ownContext.Merge(p.inheritedContext)
}

func (p *Plan) cliContext() fmf.Context {
	return p.Options().Context
}

func stringList(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
