package trackermodel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventTypeJSONRoundTripsAsString(t *testing.T) {
	for _, tc := range []struct {
		v    EventType
		want string
	}{
		{NoteOn, `"note_on"`}, {NoteOff, `"note_off"`}, {CC, `"cc"`},
		{ProgramChange, `"program"`}, {PitchBend, `"pitch_bend"`},
		{Aftertouch, `"aftertouch"`}, {PolyAftertouch, `"poly_at"`},
	} {
		data, err := json.Marshal(tc.v)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, string(data))

		var got EventType
		assert.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, tc.v, got)
	}

	var bad EventType
	assert.Error(t, json.Unmarshal([]byte(`"not-a-type"`), &bad))
}

func TestCellTypeJSONRoundTripsAsString(t *testing.T) {
	for _, tc := range []struct {
		v    CellType
		want string
	}{
		{Empty, `"empty"`}, {Expression, `"expression"`},
		{CellNoteOff, `"note_off"`}, {Continuation, `"continuation"`},
	} {
		data, err := json.Marshal(tc.v)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, string(data))

		var got CellType
		assert.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, tc.v, got)
	}

	var bad CellType
	assert.Error(t, json.Unmarshal([]byte(`"nonsense"`), &bad))
}

func TestSpilloverModeJSONRoundTripsAsString(t *testing.T) {
	for _, tc := range []struct {
		v    SpilloverMode
		want string
	}{
		{SpilloverLayer, `"layer"`}, {SpilloverTruncate, `"truncate"`}, {SpilloverLoop, `"loop"`},
	} {
		data, err := json.Marshal(tc.v)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, string(data))

		var got SpilloverMode
		assert.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, tc.v, got)
	}

	var bad SpilloverMode
	assert.Error(t, json.Unmarshal([]byte(`"sideways"`), &bad))
}

func TestCellJSONUsesSpecFieldNames(t *testing.T) {
	c := NewCell()
	c.SetExpression("c4", "notes")
	c.FX.Entries = append(c.FX.Entries, FxEntry{Name: "transpose", Params: "7", Enabled: true})

	data, err := json.Marshal(c)
	assert.NoError(t, err)

	var raw map[string]any
	assert.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "expression", raw["type"])
	assert.Equal(t, "c4", raw["expression"])
	assert.Equal(t, "notes", raw["language_id"])
	assert.Contains(t, raw, "fx_chain")
	assert.Contains(t, raw, "dirty")
	assert.NotContains(t, raw, "compiled")
}

func TestPatternResizeKeepsTracksInLockstep(t *testing.T) {
	p := NewPattern("A", 8, 4)
	assert.True(t, p.CheckInvariant())

	p.Resize(16)
	assert.True(t, p.CheckInvariant())
	assert.Equal(t, 16, p.NumRows)
	for _, track := range p.Tracks {
		assert.Len(t, track.Cells, 16)
	}

	p.Resize(4)
	assert.True(t, p.CheckInvariant())
	for _, track := range p.Tracks {
		assert.Len(t, track.Cells, 4)
	}
}

func TestPatternAddTrackMatchesRowCount(t *testing.T) {
	p := NewPattern("A", 10, 1)
	track := p.AddTrack("Z")
	assert.Len(t, track.Cells, 10)
	assert.True(t, p.CheckInvariant())
}

func TestCellSetExpressionDirtiesAndClearsCompiled(t *testing.T) {
	c := NewCell()
	c.SetCompiled("fake-handle")
	c.Dirty = false
	assert.Equal(t, CompiledHandle("fake-handle"), c.Compiled())

	c.SetExpression("C4", "")
	assert.True(t, c.Dirty)
	assert.Nil(t, c.Compiled())
	assert.Equal(t, Expression, c.Type)
}

func TestCellEmptyExpressionIsEmptyType(t *testing.T) {
	c := NewCell()
	c.SetExpression("", "")
	assert.Equal(t, Empty, c.Type)
}

func TestSongRemovePatternUpdatesSequence(t *testing.T) {
	s := NewSong("song", "author")
	s.AddPattern(NewPattern("A", 8, 1))
	s.AddPattern(NewPattern("B", 8, 1))
	s.AddPattern(NewPattern("C", 8, 1))
	s.Sequence = []SequenceEntry{
		{PatternIndex: 0, RepeatCount: 1},
		{PatternIndex: 1, RepeatCount: 2},
		{PatternIndex: 2, RepeatCount: 1},
	}

	s.RemovePattern(1)

	assert.Len(t, s.Patterns, 2)
	assert.True(t, s.CheckSequenceIntegrity())
	for _, e := range s.Sequence {
		assert.NotEqual(t, "B", s.Patterns[e.PatternIndex].Name)
	}
}

func TestCloneRoundtripsEventPhraseFxCellPatternSong(t *testing.T) {
	ev := Event{Type: NoteOn, Channel: 3, Data1: 60, Data2: 80, GateRows: 1,
		Flags: FlagAccent, Ext: &ExtendedParams{AccentBoost: 10}}
	evClone := ev.Clone()
	assert.Equal(t, ev, evClone)
	evClone.Ext.AccentBoost = 99
	assert.NotEqual(t, ev.Ext.AccentBoost, evClone.Ext.AccentBoost)

	ph := NewPhrase().Append(ev)
	phClone := ph.Clone()
	assert.Equal(t, ph.Events, phClone.Events)

	fx := NewFxChain()
	fx.Entries = append(fx.Entries, FxEntry{Name: "transpose", Params: "7", Enabled: true})
	fxClone := fx.Clone()
	assert.Equal(t, fx.Entries, fxClone.Entries)

	pat := NewPattern("A", 4, 2)
	patClone := pat.Clone()
	assert.Equal(t, pat.NumRows, patClone.NumRows)
	assert.Len(t, patClone.Tracks, len(pat.Tracks))

	song := NewSong("s", "a")
	song.AddPattern(pat)
	songClone := song.Clone()
	assert.Equal(t, song.Name, songClone.Name)
	assert.Len(t, songClone.Patterns, 1)
}

func TestClampHelpers(t *testing.T) {
	assert.Equal(t, 127, ClampData(200))
	assert.Equal(t, 0, ClampData(-5))
	assert.Equal(t, 15, ClampChannel(99))
	assert.Equal(t, 63, ClampPan(1000))
	assert.Equal(t, -64, ClampPan(-1000))
	assert.Equal(t, float64(300), ClampBPM(999))
	assert.Equal(t, float64(20), ClampBPM(1))
}
