package step

import (
	"context"
	"fmt"
	"path/filepath"

	"tmt/internal/workdir"
	"tmt/pkg/logging"
)

// DefaultOrder is the order of phases which do not set one.
const DefaultOrder = 50

// PhaseData is the raw configuration of a single phase.
type PhaseData map[string]interface{}

// String returns a string value, or def when missing or not a string.
func (d PhaseData) String(key, def string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return def
}

// Bool returns a boolean value, or def when missing or not a boolean.
func (d PhaseData) Bool(key string, def bool) bool {
	if v, ok := d[key].(bool); ok {
		return v
	}
	return def
}

// Int returns an integer value, or def when missing or not an integer.
func (d PhaseData) Int(key string, def int) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Strings returns a list of strings. A single string is treated as a list of
// one item.
func (d PhaseData) Strings(key string) []string {
	switch v := d[key].(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

// Copy returns a shallow copy of the data.
func (d PhaseData) Copy() PhaseData {
	out := make(PhaseData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Phase is one configured unit of work within a step.
type Phase interface {
	Name() string
	How() string
	Order() int
	// Data returns the raw phase configuration.
	Data() PhaseData
	// Default returns the fallback value of an option, nil when there is none.
	Default(option string) interface{}
	// Options lists the option keys the plugin understands.
	Options() []string
	// Standalone reports whether the phase must run alone, without the
	// other steps of the plan.
	Standalone() bool
	// Wake normalizes options once CLI overrides are applied.
	Wake() error
	Go(ctx context.Context) error
}

// Suspender is implemented by phases holding resources, such as guest
// connections, which should be released when the plan stops using them.
type Suspender interface {
	Suspend()
}

// TestExtractor is implemented by discover phases which may discover tests
// only later in the pipeline.
type TestExtractor interface {
	ExtractTestsLater() bool
}

// GuestProvider is implemented by provision phases.
type GuestProvider interface {
	Guests() []Guest
}

// Factory creates a phase from its configuration.
type Factory func(step *Step, data PhaseData, logger *logging.Logger) (Phase, error)

// BasePhase implements the parts of Phase shared by all plugins. Plugins
// embed it and provide Go.
type BasePhase struct {
	step     *Step
	data     PhaseData
	logger   *logging.Logger
	defaults map[string]interface{}
}

// NewBasePhase creates the shared phase state. defaults holds the fallback
// value of every option the plugin understands.
func NewBasePhase(step *Step, data PhaseData, logger *logging.Logger, defaults map[string]interface{}) BasePhase {
	return BasePhase{step: step, data: data, logger: logger, defaults: defaults}
}

func (p *BasePhase) Step() *Step             { return p.step }
func (p *BasePhase) Logger() *logging.Logger { return p.logger }
func (p *BasePhase) Data() PhaseData         { return p.data.Copy() }
func (p *BasePhase) Name() string            { return p.data.String("name", "") }
func (p *BasePhase) How() string             { return p.data.String("how", "") }
func (p *BasePhase) Order() int              { return p.data.Int("order", DefaultOrder) }
func (p *BasePhase) Standalone() bool        { return p.data.Bool("standalone", false) }
func (p *BasePhase) Wake() error             { return nil }

// Default returns the fallback value of option.
func (p *BasePhase) Default(option string) interface{} {
	return p.defaults[option]
}

// Options lists the keys of the plugin defaults.
func (p *BasePhase) Options() []string {
	out := make([]string, 0, len(p.defaults))
	for k := range p.defaults {
		out = append(out, k)
	}
	return out
}

// Get returns the configured value of option, or its default.
func (p *BasePhase) Get(option string) interface{} {
	if v, ok := p.data[option]; ok {
		return v
	}
	return p.Default(option)
}

// GetString returns the option as a string.
func (p *BasePhase) GetString(option string) string {
	if v, ok := p.Get(option).(string); ok {
		return v
	}
	return ""
}

// GetBool returns the option as a boolean.
func (p *BasePhase) GetBool(option string) bool {
	v, _ := p.Get(option).(bool)
	return v
}

// GetStrings returns the option as a list of strings.
func (p *BasePhase) GetStrings(option string) []string {
	return PhaseData{option: p.Get(option)}.Strings(option)
}

// Set updates the phase configuration, typically during Wake.
func (p *BasePhase) Set(option string, value interface{}) {
	p.data[option] = value
}

// Workdir is the directory reserved for the phase below the step workdir.
func (p *BasePhase) Workdir() string {
	return filepath.Join(p.step.Workdir(), workdir.SanitizeName(p.Name()))
}
