package notesplugin

import (
	"testing"

	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
	"github.com/stretchr/testify/assert"
)

func ctx() *registry.EvalContext {
	return &registry.EvalContext{Channel: 0}
}

func TestParseSingleNoteDefaultsVelocityAndGate(t *testing.T) {
	ph, err := Parse("C4", ctx())
	assert.NoError(t, err)
	assert.Equal(t, 1, ph.Len())
	assert.Equal(t, trackermodel.NoteOn, ph.Events[0].Type)
	assert.Equal(t, 60, ph.Events[0].Data1)
	assert.Equal(t, defaultVelocity, ph.Events[0].Data2)
	assert.Equal(t, defaultGate, ph.Events[0].GateRows)
}

func TestParseVelocityAndGateSuffixes(t *testing.T) {
	ph, err := Parse("C4@100~2", ctx())
	assert.NoError(t, err)
	assert.Equal(t, 100, ph.Events[0].Data2)
	assert.Equal(t, 2, ph.Events[0].GateRows)
}

func TestParseChordSplitsOnWhitespaceAndCommaAndPipe(t *testing.T) {
	ph, err := Parse("C4 E4,G4|C5", ctx())
	assert.NoError(t, err)
	assert.Equal(t, 4, ph.Len())
}

func TestParseRestProducesNoEvents(t *testing.T) {
	ph, err := Parse("r", ctx())
	assert.NoError(t, err)
	assert.Equal(t, 0, ph.Len())
}

func TestParseNoteOffTokenUsesSentinel(t *testing.T) {
	ph, err := Parse("off", ctx())
	assert.NoError(t, err)
	assert.Equal(t, trackermodel.NoteOff, ph.Events[0].Type)
	assert.Equal(t, trackermodel.AllNotesSentinel, ph.Events[0].Data1)
}

func TestParseInvalidLetterFails(t *testing.T) {
	_, err := Parse("H4", ctx())
	assert.Error(t, err)
}

func TestParsePhraseReferenceResolvesThroughLookup(t *testing.T) {
	c := ctx()
	c.LookupPhrase = func(name string) (string, string, bool) {
		if name == "lead" {
			return "C4 E4", LanguageID, true
		}
		return "", "", false
	}
	ph, err := Parse("@lead", c)
	assert.NoError(t, err)
	assert.Equal(t, 2, ph.Len())
}

func TestParsePhraseReferenceRecursionCapsAtEmptyPhrase(t *testing.T) {
	c := ctx()
	c.LookupPhrase = func(name string) (string, string, bool) {
		return "@self", LanguageID, true
	}
	ph, err := Parse("@self", c)
	assert.NoError(t, err)
	assert.Equal(t, 0, ph.Len())
}

func TestIsGeneratorTrueOnlyForPhraseReference(t *testing.T) {
	assert.True(t, IsGenerator("@lead"))
	assert.False(t, IsGenerator("C4"))
	assert.False(t, IsGenerator("C4@100"))
}

func TestValidateReportsSyntaxError(t *testing.T) {
	ok, msg, _ := Validate("H4")
	assert.False(t, ok)
	assert.NotEmpty(t, msg)
}

func TestTransposeIdentityOnZeroReturnsSameValue(t *testing.T) {
	ph, _ := Parse("C4", ctx())
	out, err := transposeFn(ph, "0", ctx())
	assert.NoError(t, err)
	assert.Same(t, ph, out)
}

func TestTransposeShiftsPitchAndClamps(t *testing.T) {
	ph, _ := Parse("C4", ctx())
	out, err := transposeFn(ph, "5", ctx())
	assert.NoError(t, err)
	assert.Equal(t, 65, out.Events[0].Data1)

	high, _ := Parse("G9", ctx())
	out2, err := transposeFn(high, "40", ctx())
	assert.NoError(t, err)
	assert.Equal(t, 127, out2.Events[0].Data1)
}

func TestReverseMirrorsOffsetTicks(t *testing.T) {
	ph := trackermodel.NewPhrase().Append(
		trackermodel.Event{Type: trackermodel.NoteOn, OffsetTicks: 0},
		trackermodel.Event{Type: trackermodel.NoteOn, OffsetTicks: 4},
	)
	out, err := reverseFn(ph, "", ctx())
	assert.NoError(t, err)
	assert.Equal(t, 4, out.Events[0].OffsetTicks)
	assert.Equal(t, 0, out.Events[1].OffsetTicks)
}

func TestHumanizeIsDeterministicGivenSameSeed(t *testing.T) {
	ph, _ := Parse("C4 D4 E4", ctx())
	c1 := ctx()
	c1.RandomSeed = 42
	c2 := ctx()
	c2.RandomSeed = 42
	out1, _ := humanizeFn(ph, "5,10", c1)
	out2, _ := humanizeFn(ph, "5,10", c2)
	assert.Equal(t, out1.Events, out2.Events)
}

func TestRatchetReplacesNoteOnWithRepeats(t *testing.T) {
	ph, _ := Parse("C4", ctx())
	out, err := ratchetFn(ph, "3,6", ctx())
	assert.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 0, out.Events[0].OffsetTicks)
	assert.Equal(t, 6, out.Events[1].OffsetTicks)
	assert.Equal(t, 12, out.Events[2].OffsetTicks)
}

func TestScaleQuantizesOutOfScaleNote(t *testing.T) {
	ph := trackermodel.NewPhrase().Append(trackermodel.Event{Type: trackermodel.NoteOn, Data1: 61})
	out, err := scaleFn(ph, "major,0", ctx())
	assert.NoError(t, err)
	assert.NotEqual(t, 61, out.Events[0].Data1)
}

func TestPluginImplementsRegistryInterface(t *testing.T) {
	var _ registry.Plugin = New()
}

func TestPluginListTransformsIncludesAliasesByCanonicalName(t *testing.T) {
	p := New()
	names := p.ListTransforms()
	assert.Contains(t, names, "transpose")
	assert.Contains(t, names, "scale")
	assert.NotContains(t, names, "tr")
}

func TestPluginGetTransformResolvesAlias(t *testing.T) {
	p := New()
	fn, ok := p.GetTransform("tr")
	assert.True(t, ok)
	assert.NotNil(t, fn)
}
