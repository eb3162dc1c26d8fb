// Package step implements the pipeline stages of a plan and the contract
// their plugins satisfy.
//
// Every plan owns exactly one Step per stage, run in the fixed order given by
// Names. A Step holds the raw phase configuration read from the plan
// metadata and, once awake, one Phase per configuration entry. Phases are
// created by factories registered under the step name and a "how" key:
//
//	func init() {
//		step.MustRegister("discover", "fmf", newFmfPhase)
//	}
//
// Step status and the data later stages depend on (discovered tests,
// provisioned guests, execution results) are persisted as YAML files below
// the step workdir so that an interrupted run can resume.
package step
