package run

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"tmt/internal/step"

	"gopkg.in/yaml.v3"
)

// Policy modifies a step of every plan whose name matches Plan:
//
//	policies:
//	  - plan: ^/plans/smoke
//	    step: prepare
//	    insert: true
//	    name: extra-packages
//	    update:
//	      script: dnf install -y jq
type Policy struct {
	Plan          string `yaml:"plan"`
	Step          string `yaml:"step"`
	step.Override `yaml:",inline"`

	planRe *regexp.Regexp
}

type policyFile struct {
	Policies []Policy `yaml:"policies"`
}

// LoadPolicies reads a policy file. All invalid entries are reported.
func LoadPolicies(path string) ([]Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid policy file %s: %w", path, err)
	}

	var errs []error
	for i := range file.Policies {
		if err := file.Policies[i].compile(); err != nil {
			errs = append(errs, fmt.Errorf("policy %d: %w", i, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return file.Policies, nil
}

func (p *Policy) compile() error {
	if !step.IsValidName(p.Step) {
		return fmt.Errorf("unknown step '%s'", p.Step)
	}
	re, err := regexp.Compile(p.Plan)
	if err != nil {
		return fmt.Errorf("invalid plan pattern: %w", err)
	}
	p.planRe = re
	return nil
}

// Matches reports whether the policy applies to the named plan.
func (p *Policy) Matches(plan string) bool {
	return p.planRe != nil && p.planRe.MatchString(plan)
}
