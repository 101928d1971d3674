// Package registry implements the process-wide plugin registry: a
// mapping from language_id to Plugin, with transform name resolution
// across plugins by priority. Grounded on the registration-map +
// lifecycle-hook shape used throughout this corpus's plugin
// frameworks, trimmed to the flat register/find/find_transform
// contract this spec calls for.
package registry

import (
	"fmt"
	"log"
	"sort"

	"github.com/schollz/collidertracker/internal/trackermodel"
)

// Capability is a bitset of what a Plugin can do.
type Capability uint8

const (
	CapEvaluate Capability = 1 << iota
	CapValidation
	CapCompilation
	CapTransforms
	CapGenerators
)

func (c Capability) Has(bit Capability) bool { return c&bit != 0 }

// EvalContext is the read-only context an evaluator or transform
// receives. It is defined here (rather than in package evaluator) so
// that Plugin implementations don't need to import the evaluator
// package, avoiding a cycle.
type EvalContext struct {
	CurrentPattern, CurrentTrack, CurrentRow int
	TotalTracks, TotalRows                   int

	BPM                       float64
	RowsPerBeat, TicksPerRow  int
	Channel                   int
	TrackName, SongName       string

	AbsoluteTick    int64
	AbsoluteTimeMs  float64

	SpilloverMode trackermodel.SpilloverMode
	TrackMuted    bool
	TrackSolo     bool

	RandomSeed            uint32
	RandomState           uint32
	PhraseRecursionDepth  int

	LookupPhrase func(name string) (expr, languageID string, ok bool)
}

// Random returns a deterministic pseudo-random integer in [0,max) and
// advances RandomState, mirroring the xorshift32 contract used by the
// notes plugin's humanize transform (§4.4 Determinism).
func (c *EvalContext) Random(max int) int {
	if max <= 0 {
		return 0
	}
	c.RandomState = xorshift32(c.RandomState)
	return int(c.RandomState % uint32(max))
}

// RandomFloat returns a deterministic value in [0,1).
func (c *EvalContext) RandomFloat() float64 {
	c.RandomState = xorshift32(c.RandomState)
	return float64(c.RandomState) / float64(1<<32)
}

// Reseed resets the context's random state, used by the engine when it
// sets a per-evaluation seed so replays reproduce.
func (c *EvalContext) Reseed(seed uint32) {
	if seed == 0 {
		seed = 1
	}
	c.RandomState = seed
	c.RandomSeed = seed
}

func xorshift32(state uint32) uint32 {
	if state == 0 {
		state = 1
	}
	state ^= state << 13
	state ^= state >> 17
	state ^= state << 5
	return state
}

// ParsedParams is whatever a plugin's ParseTransformParams returns; it
// is opaque to the registry and the caller of GetTransform.
type ParsedParams interface{}

// CompiledExpr is an opaque compiled-expression handle a plugin
// returns from Compile and consumes in EvaluateCompiled.
type CompiledExpr interface{}

// TransformFn applies a named, parameterized transform to a phrase.
type TransformFn func(input *trackermodel.Phrase, rawParams string, ctx *EvalContext) (*trackermodel.Phrase, error)

// Plugin is a language back-end. Every method beyond Identity/Priority
// is conditional on the corresponding Capability and may be left
// unimplemented (returning a zero value or an error) when that
// capability bit is unset.
type Plugin interface {
	Name() string
	LanguageID() string
	Version() string
	Description() string
	Capabilities() Capability
	Priority() int

	Init() bool
	Cleanup()
	Reset()

	Validate(expr string) (ok bool, msg string, pos int)
	IsGenerator(expr string) bool
	Evaluate(expr string, ctx *EvalContext) (*trackermodel.Phrase, error)

	Compile(expr string) (CompiledExpr, error)
	EvaluateCompiled(ce CompiledExpr, ctx *EvalContext) (*trackermodel.Phrase, error)

	GetTransform(name string) (TransformFn, bool)
	ListTransforms() []string
	DescribeTransform(name string) string
	GetTransformParamsDoc(name string) string
	ParseTransformParams(name, params string) (ParsedParams, error)
}

// MaxPlugins bounds registry storage (§6 "finite, e.g. <= 64 entries").
const MaxPlugins = 64

// Registry is the process-wide language_id -> Plugin map plus the
// default-plugin and transform-resolution logic.
type Registry struct {
	plugins map[string]Plugin
	order   []string // registration order, for find_transform tie-breaks
	dflt    string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin, failing on a duplicate language_id, a full
// registry, or a plugin whose Init() returns false. The first
// successfully registered plugin becomes the default unless
// SetDefault is called later.
func (r *Registry) Register(p Plugin) error {
	if len(r.plugins) >= MaxPlugins {
		return fmt.Errorf("registry: full (max %d plugins)", MaxPlugins)
	}
	id := p.LanguageID()
	if _, exists := r.plugins[id]; exists {
		return fmt.Errorf("registry: duplicate language_id %q", id)
	}
	if !p.Init() {
		return fmt.Errorf("registry: plugin %q failed to initialize", id)
	}
	r.plugins[id] = p
	r.order = append(r.order, id)
	if r.dflt == "" {
		r.dflt = id
	}
	log.Printf("[REGISTRY] registered plugin %q (%s) priority=%d caps=%08b", id, p.Name(), p.Priority(), p.Capabilities())
	return nil
}

// SetDefault overrides which registered plugin Find("") resolves to.
func (r *Registry) SetDefault(languageID string) error {
	if _, ok := r.plugins[languageID]; !ok {
		return fmt.Errorf("registry: unknown language_id %q", languageID)
	}
	r.dflt = languageID
	return nil
}

// Find resolves a language_id to its Plugin. An empty languageID
// resolves to the default plugin.
func (r *Registry) Find(languageID string) (Plugin, bool) {
	if languageID == "" {
		languageID = r.dflt
	}
	p, ok := r.plugins[languageID]
	return p, ok
}

// FindTransform searches every transform-capable plugin for name and
// returns the one with the highest Priority that knows it, breaking
// ties by registration order.
func (r *Registry) FindTransform(name string) (Plugin, TransformFn, bool) {
	var (
		best     Plugin
		bestFn   TransformFn
		bestPrio = -1 << 31
		found    bool
	)
	for _, id := range r.order {
		p := r.plugins[id]
		if !p.Capabilities().Has(CapTransforms) {
			continue
		}
		fn, ok := p.GetTransform(name)
		if !ok {
			continue
		}
		if !found || p.Priority() > bestPrio {
			best, bestFn, bestPrio, found = p, fn, p.Priority(), true
		}
	}
	return best, bestFn, found
}

// Plugins returns every registered plugin in registration order.
func (r *Registry) Plugins() []Plugin {
	out := make([]Plugin, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.plugins[id])
	}
	return out
}

// Unique reports whether all registered language_ids are distinct
// (P9). Duplicate registration is already rejected by Register, so
// this is always true for a Registry built solely through it; exposed
// for property tests that construct plugin lists independently.
func Unique(ids []string) bool {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

// SortedLanguageIDs returns registered language_ids sorted, a small
// convenience for listing them.
func (r *Registry) SortedLanguageIDs() []string {
	ids := make([]string, 0, len(r.plugins))
	for id := range r.plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
