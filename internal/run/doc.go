// Package run drives a tmt run: it selects plans from a metadata tree,
// resolves remote plan references, applies run policies and executes the
// plans, sequentially or in parallel.
//
// A run owns a workdir below the configured root:
//
//	<root>/run-1a2b3c4d/
//	    run.yaml          run id, selected plans and options
//	    import/<plan>/    clones of repositories referenced by plans
//	    plans/<plan>/     plan workdirs, see package plan
//
// Plans replaced by a shaper are swapped for their replacements, which are
// then executed as part of the same run.
package run
