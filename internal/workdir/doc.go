// Package workdir persists YAML state files below a working directory.
//
// Plans, steps and runs each own a directory under the run workdir. State is
// kept as one YAML document per entity so that an interrupted run can be
// resumed by re-reading it:
//
//	<run>/run.yaml
//	<run>/plans/smoke/discover/step.yaml
//	<run>/plans/smoke/discover/tests.yaml
//	<run>/plans/smoke/execute/results.yaml
//
// The layout below each root is owned by the caller; Storage only resolves
// section/name pairs to file paths and encodes values.
package workdir
