// Package logging provides the structured logging used across tmt.
//
// The package is built on Go's standard slog package. Every log line carries a
// subsystem attribute which, for plan execution, is the hierarchical path of
// the component that emitted it:
//
//	/plans/smoke                 plan
//	/plans/smoke/discover        step
//	/plans/smoke/discover/fmf    phase
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Config", "Loaded configuration from %s", path)
//	logging.Error("Run", err, "Plan %s failed", name)
//
//	logger := logging.NewLogger("/plans/smoke")
//	logger.Descend("discover").Info("%d tests found", n)
//
// Until InitForCLI is called, only warnings and errors are written, to stderr.
package logging
