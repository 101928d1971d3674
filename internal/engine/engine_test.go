package engine

import (
	"testing"

	"github.com/schollz/collidertracker/internal/compiler"
	"github.com/schollz/collidertracker/internal/notesplugin"
	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
	"github.com/stretchr/testify/assert"
)

type fakeSink struct {
	NoOpSink
	noteOns  []noteOnCall
	noteOffs []noteOffCall
}

type noteOnCall struct{ Channel, Note, Velocity int }
type noteOffCall struct{ Channel, Note int }

func (s *fakeSink) NoteOn(channel, note, velocity int) {
	s.noteOns = append(s.noteOns, noteOnCall{channel, note, velocity})
}

func (s *fakeSink) NoteOff(channel, note, releaseVelocity int) {
	s.noteOffs = append(s.noteOffs, noteOffCall{channel, note})
}

func newTestEngine(t *testing.T, rows int) (*Engine, *fakeSink) {
	t.Helper()
	reg := registry.New()
	assert.NoError(t, reg.Register(notesplugin.New()))
	comp := compiler.New(reg)

	song := trackermodel.NewSong("test", "tester")
	song.BPM = 120
	song.RowsPerBeat = 4
	song.TicksPerRow = 6
	song.DefaultLanguageID = notesplugin.LanguageID

	pat := trackermodel.NewPattern("p0", rows, 1)
	song.AddPattern(pat)

	sink := &fakeSink{}
	e := New(song, reg, comp, sink)
	return e, sink
}

func TestScheduleAndDispatchS7(t *testing.T) {
	e, sink := newTestEngine(t, 4)
	pat := e.Song.Patterns[0]
	pat.Tracks[0].DefaultChannel = 1
	pat.Tracks[0].Cells[0].SetExpression("C4~1", "")

	e.Play()
	e.Process(250)

	assert.Len(t, sink.noteOns, 1)
	assert.Equal(t, noteOnCall{Channel: 1, Note: 60, Velocity: 80}, sink.noteOns[0])
	assert.Len(t, sink.noteOffs, 1)
	assert.Equal(t, noteOffCall{Channel: 1, Note: 60}, sink.noteOffs[0])
	assert.EqualValues(t, 2, e.Stats.EventsFired)
}

func TestSeekEmitsNoteOffsS8(t *testing.T) {
	e, sink := newTestEngine(t, 4)
	pat := e.Song.Patterns[0]
	pat.Tracks[0].DefaultChannel = 1
	pat.Tracks[0].Cells[0].SetExpression("C4~100", "") // long gate so the note-off hasn't fired yet

	e.Play()
	e.Process(25)

	assert.Len(t, sink.noteOns, 1)
	assert.Equal(t, 1, e.ActiveNoteCount())

	e.Seek(0, 0)

	assert.Len(t, sink.noteOffs, 1)
	assert.Equal(t, noteOffCall{Channel: 1, Note: 60}, sink.noteOffs[0])
	assert.Equal(t, 0, e.ActiveNoteCount())
}

func TestSeekIsIdempotentP5(t *testing.T) {
	e, _ := newTestEngine(t, 4)
	e.Seek(0, 2)
	tickAfterFirst := e.CurrentTick
	rowAfterFirst := e.CurrentRow
	e.Seek(0, 2)
	assert.Equal(t, tickAfterFirst, e.CurrentTick)
	assert.Equal(t, rowAfterFirst, e.CurrentRow)
}

func TestEventTimeDomainP2(t *testing.T) {
	e, _ := newTestEngine(t, 4)
	pat := e.Song.Patterns[0]
	pat.Tracks[0].Cells[0].SetExpression("C4~1", "")

	e.Play()
	e.Process(250)

	for _, entry := range e.pending.items {
		assert.GreaterOrEqual(t, entry.DueTick, int64(0))
	}
}

func TestTieOrderingDispatchesInScheduleOrderP4(t *testing.T) {
	e, sink := newTestEngine(t, 4)
	pat := e.Song.Patterns[0]
	pat.Tracks[0].Cells[0].SetExpression("C4 D4 E4", "")

	e.Play()
	e.Process(250)

	assert.Len(t, sink.noteOns, 3)
	assert.Equal(t, 60, sink.noteOns[0].Note)
	assert.Equal(t, 62, sink.noteOns[1].Note)
	assert.Equal(t, 64, sink.noteOns[2].Note)
}

func TestAllNotesOffClearsActiveNotesP3(t *testing.T) {
	e, sink := newTestEngine(t, 4)
	pat := e.Song.Patterns[0]
	pat.Tracks[0].Cells[0].SetExpression("C4~100 E4~100", "")

	e.Play()
	e.Process(25)
	assert.Equal(t, 2, e.ActiveNoteCount())

	e.AllNotesOff(AllChannels)
	assert.Equal(t, 0, e.ActiveNoteCount())
	assert.Len(t, sink.noteOffs, 2)
}

func TestTrackNotesOffOnlyAffectsThatTrack(t *testing.T) {
	e, _ := newTestEngine(t, 4)
	pat := e.Song.Patterns[0]
	pat.Tracks = append(pat.Tracks, trackermodel.NewTrack("B", pat.NumRows))
	pat.Tracks[0].Cells[0].SetExpression("C4~100", "")
	pat.Tracks[1].Cells[0].SetExpression("D4~100", "")

	e.Play()
	e.Process(25)
	assert.Equal(t, 2, e.ActiveNoteCount())

	e.TrackNotesOff(0)
	assert.Equal(t, 1, e.ActiveNoteCount())
}

func TestDeterministicEvaluationP6(t *testing.T) {
	e, _ := newTestEngine(t, 4)
	pat := e.Song.Patterns[0]
	pat.Tracks[0].Cells[0].SetExpression("C4 D4 E4", "")
	cell := pat.Tracks[0].Cells[0]

	cc, err := e.compileCell(cell, 0, 0)
	assert.NoError(t, err)
	ctx1 := e.buildContext(pat, 0, pat.Tracks[0], 0)
	ph1, err := e.Eval.EvaluateCell(cc, ctx1)
	assert.NoError(t, err)

	ctx2 := e.buildContext(pat, 0, pat.Tracks[0], 0)
	ph2, err := e.Eval.EvaluateCell(cc, ctx2)
	assert.NoError(t, err)

	assert.Equal(t, ph1.Events, ph2.Events)
}

func TestTruncateSpilloverCancelsPreviousTrackPhrase(t *testing.T) {
	e, sink := newTestEngine(t, 4)
	e.Song.SpilloverMode = trackermodel.SpilloverTruncate
	pat := e.Song.Patterns[0]
	pat.Tracks[0].Cells[0].SetExpression("C4~100", "")
	pat.Tracks[0].Cells[1].SetExpression("D4~100", "")

	e.Play()
	e.Process(21) // crosses only the row-0 boundary; C4 sounds and becomes active
	assert.Equal(t, 1, e.ActiveNoteCount())

	e.Process(130) // crosses the row-1 boundary: truncate cuts C4 before D4 starts
	assert.Contains(t, noteNames(sink.noteOffs), 60)
}

func noteNames(offs []noteOffCall) []int {
	out := make([]int, len(offs))
	for i, o := range offs {
		out[i] = o.Note
	}
	return out
}
