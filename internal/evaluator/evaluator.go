// Package evaluator runs a compiled cell against a context and applies
// its FX chain, producing the Phrase the engine schedules.
package evaluator

import (
	"fmt"

	"github.com/schollz/collidertracker/internal/compiler"
	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
)

// EvalContext re-exports registry.EvalContext so callers outside the
// registry package don't need to import it directly for this common
// case.
type EvalContext = registry.EvalContext

// Evaluator runs compiled cells.
type Evaluator struct{}

// New returns an Evaluator. It holds no state: every call is a pure
// function of its compiled cell and context.
func New() *Evaluator {
	return &Evaluator{}
}

// EvaluateCell runs cc against ctx and returns a freshly owned phrase.
// For non-generator cells with a cached phrase it returns a deep
// clone; for generators it always reinvokes the plugin. Returns nil,
// nil for cells that compile to nothing (KindNone) or a NoteOff
// sentinel (KindNoteOff) — callers branch on cc.Kind before this.
func (e *Evaluator) EvaluateCell(cc *compiler.CompiledCell, ctx *EvalContext) (*trackermodel.Phrase, error) {
	if cc == nil || cc.Kind != compiler.KindExpr {
		return nil, nil
	}

	if !cc.IsGenerator {
		if cached := cc.CachedPhrase(); cached != nil {
			return cached.Clone(), nil
		}
	}

	phrase, err := e.invoke(cc, ctx)
	if err != nil {
		return nil, err
	}

	if !cc.IsGenerator {
		cc.SetCachedPhrase(phrase)
		return phrase.Clone(), nil
	}
	return phrase, nil
}

func (e *Evaluator) invoke(cc *compiler.CompiledCell, ctx *EvalContext) (*trackermodel.Phrase, error) {
	if cc.CompiledExp != nil {
		return cc.Plugin.EvaluateCompiled(cc.CompiledExp, ctx)
	}
	return cc.Plugin.Evaluate(cc.Source, ctx)
}

// ApplyFxChain applies chain's resolved steps left-to-right to phrase.
// A disabled entry is skipped. If any enabled transform fails, the
// error is returned and the caller must treat the chain's output as
// gone (§4.3 "the partial result and the original are both freed").
// A transform that returns the very phrase it was given (pointer
// identity) is treated as "no change" and evaluation continues with
// the same phrase.
func (e *Evaluator) ApplyFxChain(chain *compiler.CompiledFxChain, phrase *trackermodel.Phrase, ctx *EvalContext) (*trackermodel.Phrase, error) {
	current := phrase
	for _, step := range chain.Steps {
		if !step.Entry.Enabled || step.Fn == nil {
			continue
		}
		next, err := step.Fn(current, step.Entry.Params, ctx)
		if err != nil {
			return nil, fmt.Errorf("transform %q: %w", step.Entry.Name, err)
		}
		current = next
	}
	return current, nil
}
