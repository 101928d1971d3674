package evaluator

import (
	"testing"

	"github.com/schollz/collidertracker/internal/compiler"
	"github.com/schollz/collidertracker/internal/notesplugin"
	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
	"github.com/stretchr/testify/assert"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	assert.NoError(t, reg.Register(notesplugin.New()))
	return reg
}

func TestEvaluateCellRunsNotesExpression(t *testing.T) {
	reg := newRegistry(t)
	comp := compiler.New(reg)
	cell := trackermodel.NewCell()
	cell.SetExpression("C4 E4", "")

	cc, err := comp.Compile(cell, notesplugin.LanguageID, compiler.Location{})
	assert.NoError(t, err)

	ev := New()
	ph, err := ev.EvaluateCell(cc, &registry.EvalContext{Channel: 0})
	assert.NoError(t, err)
	assert.Equal(t, 2, ph.Len())
}

func TestEvaluateCellCachesNonGeneratorPhrase(t *testing.T) {
	reg := newRegistry(t)
	comp := compiler.New(reg)
	cell := trackermodel.NewCell()
	cell.SetExpression("C4", "")
	cc, err := comp.Compile(cell, notesplugin.LanguageID, compiler.Location{})
	assert.NoError(t, err)

	ev := New()
	ctx := &registry.EvalContext{}
	first, err := ev.EvaluateCell(cc, ctx)
	assert.NoError(t, err)
	assert.NotNil(t, cc.CachedPhrase())

	second, err := ev.EvaluateCell(cc, ctx)
	assert.NoError(t, err)
	assert.Equal(t, first.Events, second.Events)
	assert.NotSame(t, first, second)
}

func TestEvaluateCellGeneratorNeverCaches(t *testing.T) {
	reg := newRegistry(t)
	comp := compiler.New(reg)
	cell := trackermodel.NewCell()
	cell.SetExpression("@lead", "")
	cc, err := comp.Compile(cell, notesplugin.LanguageID, compiler.Location{})
	assert.NoError(t, err)
	assert.True(t, cc.IsGenerator)

	ev := New()
	ctx := &registry.EvalContext{
		LookupPhrase: func(name string) (string, string, bool) {
			return "C4", notesplugin.LanguageID, true
		},
	}
	_, err = ev.EvaluateCell(cc, ctx)
	assert.NoError(t, err)
	assert.Nil(t, cc.CachedPhrase())
}

func TestEvaluateCellReturnsNilForEmptyCell(t *testing.T) {
	reg := newRegistry(t)
	comp := compiler.New(reg)
	cell := trackermodel.NewCell()
	cc, err := comp.Compile(cell, notesplugin.LanguageID, compiler.Location{})
	assert.NoError(t, err)

	ev := New()
	ph, err := ev.EvaluateCell(cc, &registry.EvalContext{})
	assert.NoError(t, err)
	assert.Nil(t, ph)
}

func TestApplyFxChainRunsStepsLeftToRight(t *testing.T) {
	reg := newRegistry(t)
	comp := compiler.New(reg)

	chain := trackermodel.NewFxChain()
	chain.Entries = append(chain.Entries,
		trackermodel.FxEntry{Name: "transpose", Params: "2", Enabled: true},
		trackermodel.FxEntry{Name: "transpose", Params: "3", Enabled: true},
	)
	compiled, err := comp.CompileFxChain(chain)
	assert.NoError(t, err)

	ph, _ := notesplugin.Parse("C4", &registry.EvalContext{})
	ev := New()
	out, err := ev.ApplyFxChain(compiled, ph, &registry.EvalContext{})
	assert.NoError(t, err)
	assert.Equal(t, 65, out.Events[0].Data1)
}

func TestApplyFxChainSkipsDisabledEntries(t *testing.T) {
	reg := newRegistry(t)
	comp := compiler.New(reg)

	chain := trackermodel.NewFxChain()
	chain.Entries = append(chain.Entries,
		trackermodel.FxEntry{Name: "transpose", Params: "12", Enabled: false},
	)
	compiled, err := comp.CompileFxChain(chain)
	assert.NoError(t, err)

	ph, _ := notesplugin.Parse("C4", &registry.EvalContext{})
	ev := New()
	out, err := ev.ApplyFxChain(compiled, ph, &registry.EvalContext{})
	assert.NoError(t, err)
	assert.Equal(t, 60, out.Events[0].Data1)
}

func TestApplyFxChainAbortsWholeChainOnError(t *testing.T) {
	reg := registry.New()
	assert.NoError(t, reg.Register(notesplugin.New()))
	comp := compiler.New(reg)

	chain := trackermodel.NewFxChain()
	chain.Entries = append(chain.Entries,
		trackermodel.FxEntry{Name: "invert", Params: "not-a-pivot", Enabled: true},
	)
	compiled, err := comp.CompileFxChain(chain)
	assert.NoError(t, err)

	ph, _ := notesplugin.Parse("C4", &registry.EvalContext{})
	ev := New()
	_, err = ev.ApplyFxChain(compiled, ph, &registry.EvalContext{})
	assert.Error(t, err)
}
