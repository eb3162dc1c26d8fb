// Package plugins registers every built-in step plugin. Import it for its
// side effects.
package plugins

import (
	_ "tmt/internal/step/cleanup"
	_ "tmt/internal/step/discover"
	_ "tmt/internal/step/execute"
	_ "tmt/internal/step/finish"
	_ "tmt/internal/step/prepare"
	_ "tmt/internal/step/provision"
	_ "tmt/internal/step/report"
)
