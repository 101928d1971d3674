// Package notesplugin implements the reference "notes" language: a
// terse per-cell note/chord/rest grammar plus the built-in transform
// library every fx chain draws from by default. It is the registry's
// default plugin.
package notesplugin

import (
	"fmt"
	"sort"

	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
)

// LanguageID is this plugin's registry key.
const LanguageID = "notes"

const (
	pluginName    = "Notes"
	pluginVersion = "1.0.0"
	pluginDesc    = "note/chord/rest expression language with velocity and gate suffixes"
	pluginPrio    = 0
)

// Plugin is the notes-language registry.Plugin implementation. It
// carries no mutable state of its own; Reset/Cleanup are no-ops
// because Parse/transform functions are pure given their inputs.
type Plugin struct{}

// New returns an unregistered notes Plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string        { return pluginName }
func (p *Plugin) LanguageID() string  { return LanguageID }
func (p *Plugin) Version() string     { return pluginVersion }
func (p *Plugin) Description() string { return pluginDesc }

func (p *Plugin) Capabilities() registry.Capability {
	return registry.CapEvaluate | registry.CapValidation | registry.CapTransforms | registry.CapGenerators
}

func (p *Plugin) Priority() int { return pluginPrio }

func (p *Plugin) Init() bool { return true }
func (p *Plugin) Cleanup()   {}
func (p *Plugin) Reset()     {}

func (p *Plugin) Validate(expr string) (ok bool, msg string, pos int) {
	return Validate(expr)
}

func (p *Plugin) IsGenerator(expr string) bool {
	return IsGenerator(expr)
}

func (p *Plugin) Evaluate(expr string, ctx *registry.EvalContext) (*trackermodel.Phrase, error) {
	return Parse(expr, ctx)
}

// Compile is unsupported: the notes plugin does not advertise
// CapCompilation, so the compiler never calls this. It returns an
// error rather than panicking in case a future caller bypasses the
// capability check.
func (p *Plugin) Compile(expr string) (registry.CompiledExpr, error) {
	return nil, fmt.Errorf("notesplugin: Compile unsupported")
}

func (p *Plugin) EvaluateCompiled(ce registry.CompiledExpr, ctx *registry.EvalContext) (*trackermodel.Phrase, error) {
	return nil, fmt.Errorf("notesplugin: EvaluateCompiled unsupported")
}

func (p *Plugin) GetTransform(name string) (registry.TransformFn, bool) {
	def, ok := lookupTransform(name)
	if !ok {
		return nil, false
	}
	return def.fn, true
}

func (p *Plugin) ListTransforms() []string {
	names := make([]string, 0, len(transformTable))
	for name := range transformTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Plugin) DescribeTransform(name string) string {
	def, ok := lookupTransform(name)
	if !ok {
		return ""
	}
	return def.doc
}

func (p *Plugin) GetTransformParamsDoc(name string) string {
	def, ok := lookupTransform(name)
	if !ok {
		return ""
	}
	return def.params
}

// ParseTransformParams returns the raw comma-split fields: the notes
// plugin's transforms parse their own params lazily inside each
// TransformFn, so there is no separate typed params struct to build
// here.
func (p *Plugin) ParseTransformParams(name, params string) (registry.ParsedParams, error) {
	if _, ok := lookupTransform(name); !ok {
		return nil, fmt.Errorf("notesplugin: unknown transform %q", name)
	}
	return splitParams(params), nil
}
