// Package compiler turns a Cell's source expression plus its FX chain
// into a CompiledCell: a cached, executable form the evaluator can run
// repeatedly without re-parsing. Grounded on the teacher's internal/ticks
// package in spirit — both recompute a derived, cacheable quantity from
// mutable source data and must be invalidated whenever that source
// changes.
package compiler

import (
	"fmt"
	"log"

	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
)

// Kind distinguishes why a cell compiled to nothing or to a sentinel.
type Kind int

const (
	KindNone     Kind = iota // Empty/Continuation: nothing to evaluate
	KindNoteOff              // engine handles this directly
	KindExpr                 // a real compiled expression
)

// CompiledTransform is one resolved FX chain step: the plugin and
// TransformFn that `name` resolved to at compile time, plus the raw
// params string (parsing, if the plugin supports it, happens lazily at
// apply time so a transform's param syntax errors surface as part of
// evaluation, matching §4.3's "if any transform fails" contract).
type CompiledTransform struct {
	Entry trackermodel.FxEntry
	Fn    registry.TransformFn
}

// CompiledFxChain is an FX chain with every entry resolved to a
// concrete TransformFn. Disabled entries are kept (with a nil Fn) so
// CompiledFxChain.Steps stays index-aligned with the source chain.
type CompiledFxChain struct {
	Steps []CompiledTransform
}

// CompiledCell is the cache-owned, executable form of a Cell.
type CompiledCell struct {
	Kind Kind

	Plugin      registry.Plugin
	Source      string
	CompiledExp registry.CompiledExpr // non-nil only if Plugin has CapCompilation
	IsGenerator bool

	FX *CompiledFxChain

	// cachedPhrase holds the last evaluated phrase for non-generator
	// cells; generators never populate this (§4.2).
	cachedPhrase *trackermodel.Phrase
}

// CachedPhrase returns the cached phrase (nil if none) without cloning
// it; callers that hand a phrase to a caller must Clone() first.
func (c *CompiledCell) CachedPhrase() *trackermodel.Phrase {
	return c.cachedPhrase
}

// SetCachedPhrase installs ph as the cached phrase. A no-op for
// generator cells, which must never cache (§4.2).
func (c *CompiledCell) SetCachedPhrase(ph *trackermodel.Phrase) {
	if c.IsGenerator {
		return
	}
	c.cachedPhrase = ph
}

// Error is a compile error carrying the plugin-provided message and
// grid location, surfaced to the caller per §7.
type Error struct {
	Kind     string // "UnknownLanguage", "CannotEvaluate", "SyntaxError", "UnknownTransform", "BadTransformParams"
	Message  string
	Pattern  int
	Track    int
	Row      int
	Position int // for SyntaxError, byte offset within the expression; -1 if n/a
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at (pattern=%d track=%d row=%d): %s", e.Kind, e.Pattern, e.Track, e.Row, e.Message)
}

// Compiler compiles cells against a plugin registry.
type Compiler struct {
	Registry *registry.Registry
}

// New returns a Compiler bound to reg.
func New(reg *registry.Registry) *Compiler {
	return &Compiler{Registry: reg}
}

// Location identifies a cell's position for error reporting.
type Location struct {
	Pattern, Track, Row int
}

// Compile compiles cell against defaultLanguageID (used when the cell
// has no LanguageID override) and returns the resulting CompiledCell,
// or an *Error describing why compilation failed.
func (c *Compiler) Compile(cell *trackermodel.Cell, defaultLanguageID string, loc Location) (*CompiledCell, error) {
	switch cell.Type {
	case trackermodel.Empty, trackermodel.Continuation:
		return &CompiledCell{Kind: KindNone}, nil
	case trackermodel.CellNoteOff:
		return &CompiledCell{Kind: KindNoteOff}, nil
	}

	langID := cell.LanguageID
	if langID == "" {
		langID = defaultLanguageID
	}
	plugin, ok := c.Registry.Find(langID)
	if !ok {
		return nil, &Error{Kind: "UnknownLanguage", Message: fmt.Sprintf("unknown language %q", langID),
			Pattern: loc.Pattern, Track: loc.Track, Row: loc.Row, Position: -1}
	}
	caps := plugin.Capabilities()
	if !caps.Has(registry.CapEvaluate) {
		return nil, &Error{Kind: "CannotEvaluate", Message: fmt.Sprintf("plugin %q cannot evaluate", plugin.LanguageID()),
			Pattern: loc.Pattern, Track: loc.Track, Row: loc.Row, Position: -1}
	}

	if caps.Has(registry.CapValidation) {
		if ok, msg, pos := plugin.Validate(cell.Expression); !ok {
			return nil, &Error{Kind: "SyntaxError", Message: msg,
				Pattern: loc.Pattern, Track: loc.Track, Row: loc.Row, Position: pos}
		}
	}

	isGenerator := caps.Has(registry.CapGenerators) && plugin.IsGenerator(cell.Expression)

	cc := &CompiledCell{
		Kind:        KindExpr,
		Plugin:      plugin,
		Source:      cell.Expression,
		IsGenerator: isGenerator,
	}

	if caps.Has(registry.CapCompilation) {
		compiled, err := plugin.Compile(cell.Expression)
		if err != nil {
			return nil, &Error{Kind: "SyntaxError", Message: err.Error(),
				Pattern: loc.Pattern, Track: loc.Track, Row: loc.Row, Position: -1}
		}
		cc.CompiledExp = compiled
	}

	fx, err := c.compileFxChain(cell.FX, loc)
	if err != nil {
		return nil, err
	}
	cc.FX = fx

	log.Printf("[COMPILER] compiled cell at (pattern=%d track=%d row=%d): kind=%d fx_steps=%d", loc.Pattern, loc.Track, loc.Row, cc.Kind, len(fx.Steps))
	return cc, nil
}

// CompileFxChain resolves every enabled entry in chain to a concrete
// transform, failing the whole compile if any name is unknown.
// Exported so the engine can recompile a track's or the master FX
// chain independently of any one cell.
func (c *Compiler) CompileFxChain(chain *trackermodel.FxChain) (*CompiledFxChain, error) {
	return c.compileFxChain(chain, Location{})
}

func (c *Compiler) compileFxChain(chain *trackermodel.FxChain, loc Location) (*CompiledFxChain, error) {
	out := &CompiledFxChain{Steps: make([]CompiledTransform, 0, chain.Len())}
	for _, entry := range chain.Entries {
		if !entry.Enabled {
			out.Steps = append(out.Steps, CompiledTransform{Entry: entry})
			continue
		}
		var plugin registry.Plugin
		var fn registry.TransformFn
		var ok bool
		if entry.LanguageID != "" {
			plugin, ok = c.Registry.Find(entry.LanguageID)
			if ok {
				fn, ok = plugin.GetTransform(entry.Name)
			}
		} else {
			plugin, fn, ok = c.Registry.FindTransform(entry.Name)
		}
		if !ok {
			return nil, &Error{Kind: "UnknownTransform", Message: fmt.Sprintf("unknown transform %q", entry.Name),
				Pattern: loc.Pattern, Track: loc.Track, Row: loc.Row, Position: -1}
		}
		out.Steps = append(out.Steps, CompiledTransform{Entry: entry, Fn: fn})
	}
	// No log here: the engine recompiles a track's and the master FX
	// chain fresh on every cell evaluation (no cached handle on Track
	// or Song, unlike Cell), so this path runs every row during
	// playback. The per-cell compile above, gated by Cell's dirty
	// cache, is the path worth observing.
	return out, nil
}
