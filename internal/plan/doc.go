// Package plan implements the plan execution engine.
//
// A Plan owns one instance of each step and drives them through a fixed
// pipeline: discover, provision, prepare, execute, report and finish run in
// order, cleanup always runs last. Between steps the plan may stop early
// when discovery found no tests, or hand itself over to a shaper which
// replaces it with derived plans inside the owning run.
//
// Plans whose metadata contains "plan.import" are remote plan references:
// ResolveImports fetches the referenced repository and converts the matching
// plan nodes into regular plans which take the place of the reference.
//
// The environment of a plan is composed from stored layers on every read,
// in increasing precedence:
//
//	variables.env in the plan data directory
//	"environment" and "environment-file" metadata keys
//	environment inherited from the importing plan
//	--environment given on the command line
//	environment of the run
//	intrinsic variables (TMT_VERSION, TMT_TREE, TMT_PLAN_DATA, ...)
//
// Only the metadata and inherited layers are passed on to imported plans.
package plan
