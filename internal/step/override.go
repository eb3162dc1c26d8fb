package step

import (
	"fmt"

	"tmt/internal/fmf"
)

// Override is a change to the phases of a step requested on the command line
// or by a run policy.
type Override struct {
	// How switches matching phases to another plugin. Options of the
	// previous plugin are dropped.
	How string `yaml:"how,omitempty"`
	// Name limits the override to a single phase. Empty matches all phases.
	Name string `yaml:"name,omitempty"`
	// Update is merged into matching phases.
	Update map[string]interface{} `yaml:"update,omitempty"`
	// Insert adds a new phase built from How, Name and Update instead of
	// modifying existing ones.
	Insert bool `yaml:"insert,omitempty"`
}

func (o Override) apply(stepName string, phases []PhaseData) ([]PhaseData, error) {
	if o.Insert {
		how := o.How
		if how == "" {
			how = DefaultHow[stepName]
		}
		phase := PhaseData{"how": how}
		if o.Name != "" {
			phase["name"] = o.Name
		}
		if err := fmf.MergeData(phase, o.Update); err != nil {
			return nil, err
		}
		return append(phases, phase), nil
	}

	matched := false
	out := make([]PhaseData, 0, len(phases))
	for _, phase := range phases {
		if o.Name != "" && phase.String("name", "") != o.Name {
			out = append(out, phase)
			continue
		}
		matched = true
		updated := phase.Copy()
		if o.How != "" && o.How != phase.String("how", "") {
			updated = PhaseData{"how": o.How}
			for _, key := range []string{"name", "order", "summary"} {
				if v, ok := phase[key]; ok {
					updated[key] = v
				}
			}
		}
		if err := fmf.MergeData(updated, o.Update); err != nil {
			return nil, err
		}
		out = append(out, updated)
	}
	if o.Name != "" && !matched {
		return nil, fmt.Errorf("no %s phase named '%s'", stepName, o.Name)
	}
	return out, nil
}
