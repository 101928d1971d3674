package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
)

type fakePlugin struct {
	id         string
	caps       registry.Capability
	valid      bool
	generator  bool
	transforms map[string]registry.TransformFn
}

func (p *fakePlugin) Name() string                     { return p.id }
func (p *fakePlugin) LanguageID() string                { return p.id }
func (p *fakePlugin) Version() string                   { return "1" }
func (p *fakePlugin) Description() string               { return "" }
func (p *fakePlugin) Capabilities() registry.Capability { return p.caps }
func (p *fakePlugin) Priority() int                     { return 0 }
func (p *fakePlugin) Init() bool                        { return true }
func (p *fakePlugin) Cleanup()                           {}
func (p *fakePlugin) Reset()                             {}
func (p *fakePlugin) Validate(expr string) (bool, string, int) {
	if p.valid {
		return true, "", 0
	}
	return false, "bad expression", 2
}
func (p *fakePlugin) IsGenerator(string) bool { return p.generator }
func (p *fakePlugin) Evaluate(expr string, ctx *registry.EvalContext) (*trackermodel.Phrase, error) {
	return trackermodel.NewPhrase(), nil
}
func (p *fakePlugin) Compile(expr string) (registry.CompiledExpr, error) { return expr, nil }
func (p *fakePlugin) EvaluateCompiled(ce registry.CompiledExpr, ctx *registry.EvalContext) (*trackermodel.Phrase, error) {
	return trackermodel.NewPhrase(), nil
}
func (p *fakePlugin) GetTransform(name string) (registry.TransformFn, bool) {
	fn, ok := p.transforms[name]
	return fn, ok
}
func (p *fakePlugin) ListTransforms() []string                       { return nil }
func (p *fakePlugin) DescribeTransform(string) string                { return "" }
func (p *fakePlugin) GetTransformParamsDoc(string) string            { return "" }
func (p *fakePlugin) ParseTransformParams(string, string) (registry.ParsedParams, error) {
	return nil, nil
}

func newTestRegistry(p *fakePlugin) *registry.Registry {
	r := registry.New()
	_ = r.Register(p)
	return r
}

func TestCompileEmptyCellIsNotAnError(t *testing.T) {
	r := newTestRegistry(&fakePlugin{id: "notes", valid: true})
	c := New(r)
	cell := trackermodel.NewCell()
	cc, err := c.Compile(cell, "notes", Location{})
	assert.NoError(t, err)
	assert.Equal(t, KindNone, cc.Kind)
}

func TestCompileNoteOffCellIsSentinel(t *testing.T) {
	r := newTestRegistry(&fakePlugin{id: "notes", valid: true})
	c := New(r)
	cell := trackermodel.NewCell()
	cell.SetNoteOff()
	cc, err := c.Compile(cell, "notes", Location{})
	assert.NoError(t, err)
	assert.Equal(t, KindNoteOff, cc.Kind)
}

func TestCompileUnknownLanguageFails(t *testing.T) {
	r := registry.New()
	c := New(r)
	cell := trackermodel.NewCell()
	cell.SetExpression("C4", "ghost")
	_, err := c.Compile(cell, "notes", Location{Pattern: 1, Track: 2, Row: 3})
	assert.Error(t, err)
	cerr, ok := err.(*Error)
	assert.True(t, ok)
	assert.Equal(t, "UnknownLanguage", cerr.Kind)
}

func TestCompileCannotEvaluateWithoutCapability(t *testing.T) {
	r := newTestRegistry(&fakePlugin{id: "notes", caps: registry.CapValidation})
	c := New(r)
	cell := trackermodel.NewCell()
	cell.SetExpression("C4", "")
	_, err := c.Compile(cell, "notes", Location{})
	cerr := err.(*Error)
	assert.Equal(t, "CannotEvaluate", cerr.Kind)
}

func TestCompileSyntaxErrorSurfacesPluginMessage(t *testing.T) {
	r := newTestRegistry(&fakePlugin{id: "notes", caps: registry.CapEvaluate | registry.CapValidation, valid: false})
	c := New(r)
	cell := trackermodel.NewCell()
	cell.SetExpression("!!!", "")
	_, err := c.Compile(cell, "notes", Location{})
	cerr := err.(*Error)
	assert.Equal(t, "SyntaxError", cerr.Kind)
	assert.Equal(t, "bad expression", cerr.Message)
	assert.Equal(t, 2, cerr.Position)
}

func TestCompileGeneratorNeverCaches(t *testing.T) {
	r := newTestRegistry(&fakePlugin{id: "notes", caps: registry.CapEvaluate | registry.CapGenerators | registry.CapValidation,
		valid: true, generator: true})
	c := New(r)
	cell := trackermodel.NewCell()
	cell.SetExpression("@loop", "")
	cc, err := c.Compile(cell, "notes", Location{})
	assert.NoError(t, err)
	assert.True(t, cc.IsGenerator)
	cc.SetCachedPhrase(trackermodel.NewPhrase().Append(trackermodel.Event{Type: trackermodel.NoteOn}))
	assert.Nil(t, cc.CachedPhrase())
}

func TestCompileUnknownTransformFailsWholeCell(t *testing.T) {
	r := newTestRegistry(&fakePlugin{id: "notes", caps: registry.CapEvaluate | registry.CapValidation, valid: true})
	c := New(r)
	cell := trackermodel.NewCell()
	cell.SetExpression("C4", "")
	cell.FX.Entries = append(cell.FX.Entries, trackermodel.FxEntry{Name: "nope", Enabled: true})
	_, err := c.Compile(cell, "notes", Location{})
	cerr := err.(*Error)
	assert.Equal(t, "UnknownTransform", cerr.Kind)
}

func TestCompileDisabledFxEntryIsKeptButNotResolved(t *testing.T) {
	r := newTestRegistry(&fakePlugin{id: "notes", caps: registry.CapEvaluate | registry.CapValidation, valid: true})
	c := New(r)
	cell := trackermodel.NewCell()
	cell.SetExpression("C4", "")
	cell.FX.Entries = append(cell.FX.Entries, trackermodel.FxEntry{Name: "nope", Enabled: false})
	cc, err := c.Compile(cell, "notes", Location{})
	assert.NoError(t, err)
	assert.Len(t, cc.FX.Steps, 1)
	assert.Nil(t, cc.FX.Steps[0].Fn)
}
