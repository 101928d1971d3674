// Package engine implements the tick clock, pending-event schedule,
// active-note tracking, spillover policy, and transport that together
// turn compiled cells into dispatched MIDI-shaped events.
//
// Grounded on the teacher's internal/midiplayer goroutine-per-note
// player in spirit (note-on/note-off lifecycle, idempotent note-off,
// per-instrument state) but restructured as a single-threaded
// cooperative scheduler, the way §5 requires: one caller thread drives
// Process/TriggerCell/transport, no internal locks or goroutines.
package engine

import (
	"fmt"
	"log"

	"github.com/schollz/collidertracker/internal/compiler"
	"github.com/schollz/collidertracker/internal/evaluator"
	"github.com/schollz/collidertracker/internal/registry"
	"github.com/schollz/collidertracker/internal/trackermodel"
)

// State is the transport's closed state enumeration.
type State int

const (
	Stopped State = iota
	Playing
	Paused
	Recording
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

// PlayMode selects whether the engine loops one pattern or walks the
// song sequence.
type PlayMode int

const (
	PatternLoop PlayMode = iota
	SongSequence
)

// SyncMode selects what drives Process: the engine's own clock, or an
// external transport.
type SyncMode int

const (
	SyncInternal SyncMode = iota
	SyncExternalMidi
	SyncExternalLink
)

// DefaultPendingCapacity bounds the pending queue (§4.5 "capacity is
// bounded; overflow yields a recorded underrun").
const DefaultPendingCapacity = 4096

// Error is the engine's last-error record (§7): a compile failure
// during playback, plus where it happened. The engine continues past
// the offending cell rather than aborting.
type Error struct {
	Err     error
	Pattern int
	Track   int
	Row     int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v at (pattern=%d track=%d row=%d)", e.Err, e.Pattern, e.Track, e.Row)
}

// Stats holds the engine's monotonic, resettable counters (§4.5).
type Stats struct {
	EventsFired     int64
	EventsScheduled int64
	NotesOn         int64
	NotesOff        int64
	Underruns       int64
}

// Reset zeros every counter.
func (s *Stats) Reset() { *s = Stats{} }

// trackSpillState is the engine's per-track bookkeeping for the Loop
// and Truncate spillover policies (§4.5).
type trackSpillState struct {
	lastPhrase     *trackermodel.Phrase
	lastPhraseID   uint64
	phraseEndTick  int64
	hasPhrase      bool
}

// Engine is the playback engine: clock, pending schedule, active-note
// table, spillover policy, and transport. Song and its phrase library
// are referenced, not owned (§5); they must outlive the Engine.
type Engine struct {
	Song     *trackermodel.Song
	Registry *registry.Registry
	Compiler *compiler.Compiler
	Eval     *evaluator.Evaluator
	Sink     OutputSink

	State    State
	PlayMode PlayMode
	SyncMode SyncMode

	CurrentPatternIdx int // index into Song.Patterns (PatternLoop) or resolved from Sequence (SongSequence)
	CurrentRow        int // row within the current pattern
	CurrentTick       int64

	LoopStartRow int // -1 means 0
	LoopEndRow   int // -1 means pattern.NumRows-1

	SequencePos         int
	sequenceRepeatsLeft int

	SwingAmount int // 0-100

	SendAllNotesOffOnSeek bool

	RandomSeed uint32

	pending      *pendingQueue
	nextScanTick int64
	activeNotes  map[activeNoteKey]*activeNote
	spillState   map[int]*trackSpillState // keyed by track index
	seqCounter   uint64
	phraseIDGen  uint64

	Stats     Stats
	LastError *Error
}

// New returns a stopped Engine bound to song, reg, comp and sink. The
// caller must call Play (or another transport method) to begin
// advancing time.
func New(song *trackermodel.Song, reg *registry.Registry, comp *compiler.Compiler, sink OutputSink) *Engine {
	return &Engine{
		Song:                  song,
		Registry:              reg,
		Compiler:              comp,
		Eval:                  evaluator.New(),
		Sink:                  sink,
		State:                 Stopped,
		PlayMode:              PatternLoop,
		LoopStartRow:          -1,
		LoopEndRow:            -1,
		SendAllNotesOffOnSeek: true,
		RandomSeed:            1,
		pending:               newPendingQueue(DefaultPendingCapacity),
		activeNotes:           make(map[activeNoteKey]*activeNote),
		spillState:            make(map[int]*trackSpillState),
	}
}

// TickDurationMs returns the duration of one tick in milliseconds
// (§4.5 "tick_duration_ms = 60000 / (bpm * rows_per_beat * ticks_per_row)").
func (e *Engine) TickDurationMs() float64 {
	s := e.Song
	denom := s.BPM * float64(s.RowsPerBeat) * float64(s.TicksPerRow)
	if denom <= 0 {
		return 0
	}
	return 60000.0 / denom
}

// RowDurationMs returns the duration of one row in milliseconds.
func (e *Engine) RowDurationMs() float64 {
	return e.TickDurationMs() * float64(e.Song.TicksPerRow)
}

func (e *Engine) currentPattern() *trackermodel.Pattern {
	if e.CurrentPatternIdx < 0 || e.CurrentPatternIdx >= len(e.Song.Patterns) {
		return nil
	}
	return e.Song.Patterns[e.CurrentPatternIdx]
}

// Play transitions to Playing. It scans nothing itself: the next
// Process call's window starts at the current position, so that row is
// scanned first.
func (e *Engine) Play() {
	if e.State == Playing {
		return
	}
	e.State = Playing
	e.Sink.Start()
}

// Pause halts time advance without clearing the schedule.
func (e *Engine) Pause() {
	e.State = Paused
}

// Stop halts playback, cancels every pending event, and emits
// all-notes-off.
func (e *Engine) Stop() {
	e.State = Stopped
	e.CancelAll()
	e.AllNotesOff(AllChannels)
	e.Sink.Stop()
}

// Record behaves like Play but marks the transport state Recording;
// scanning and scheduling are identical (recording the input stream
// itself is the editor layer's job, out of this core's scope).
func (e *Engine) Record() {
	e.State = Recording
	e.Sink.Start()
}

// Process advances the engine's virtual clock by deltaMs milliseconds,
// scanning every row boundary crossed, draining due pending entries,
// and applying loop/sequence boundaries (§4.5 "Main operation").
// A no-op when stopped, paused, in external-sync mode, or when
// deltaMs converts to zero ticks.
func (e *Engine) Process(deltaMs float64) {
	if e.State != Playing && e.State != Recording {
		return
	}
	if e.SyncMode != SyncInternal {
		return
	}
	e.advance(deltaMs)
}

// advance is Process's engine, also used by external-sync callbacks
// (clock/link_update) to push the window forward by a computed delta.
func (e *Engine) advance(deltaMs float64) {
	tdm := e.TickDurationMs()
	if tdm <= 0 {
		return
	}
	deltaTicks := int64(deltaMs / tdm)
	if deltaTicks <= 0 {
		return
	}
	windowEnd := e.CurrentTick + deltaTicks

	for e.nextScanTick < windowEnd {
		e.scanRow(e.nextScanTick)
		e.nextScanTick += int64(e.Song.TicksPerRow)
		e.advanceRowPosition()
	}

	e.drainPending(windowEnd)
	e.CurrentTick = windowEnd
}

// advanceRowPosition moves CurrentRow forward one step and applies the
// loop/sequence boundary rules (§4.5 "Loop and sequence").
func (e *Engine) advanceRowPosition() {
	pat := e.currentPattern()
	if pat == nil {
		return
	}
	loopStart := e.LoopStartRow
	if loopStart < 0 {
		loopStart = 0
	}
	loopEnd := e.LoopEndRow
	if loopEnd < 0 {
		loopEnd = pat.NumRows - 1
	}

	e.CurrentRow++
	if e.CurrentRow <= loopEnd {
		return
	}

	switch e.PlayMode {
	case PatternLoop:
		e.CurrentRow = loopStart
	case SongSequence:
		e.advanceSequence()
		e.CurrentRow = loopStart
	}
}

func (e *Engine) advanceSequence() {
	seq := e.Song.Sequence
	if len(seq) == 0 {
		e.State = Stopped
		return
	}
	e.sequenceRepeatsLeft--
	if e.sequenceRepeatsLeft > 0 {
		return
	}
	e.SequencePos++
	if e.SequencePos >= len(seq) {
		e.SequencePos = 0
		e.State = Stopped
		return
	}
	entry := seq[e.SequencePos]
	e.CurrentPatternIdx = entry.PatternIndex
	e.sequenceRepeatsLeft = entry.RepeatCount
	if e.sequenceRepeatsLeft < 1 {
		e.sequenceRepeatsLeft = 1
	}
}

// scanRow evaluates every visible, due track's cell at CurrentRow and
// translates the resulting phrase into pending entries anchored at
// rowBaseTick (§4.5 step 1).
func (e *Engine) scanRow(rowBaseTick int64) {
	pat := e.currentPattern()
	if pat == nil {
		return
	}
	row := e.CurrentRow
	if row < 0 || row >= pat.NumRows {
		return
	}

	anySolo := false
	for _, tr := range pat.Tracks {
		if tr.Solo {
			anySolo = true
			break
		}
	}

	for trackIdx, tr := range pat.Tracks {
		if tr.Muted {
			continue
		}
		if anySolo && !tr.Solo {
			continue
		}
		if row >= len(tr.Cells) {
			continue
		}
		cell := tr.Cells[row]
		e.scanCell(pat, trackIdx, tr, row, cell, rowBaseTick)
	}
}

func (e *Engine) scanCell(pat *trackermodel.Pattern, trackIdx int, tr *trackermodel.Track, row int, cell *trackermodel.Cell, rowBaseTick int64) {
	switch cell.Type {
	case trackermodel.Empty, trackermodel.Continuation:
		e.maybeLoopSpillover(trackIdx, rowBaseTick)
		return
	}

	cc, err := e.compileCell(cell, trackIdx, row)
	if err != nil {
		e.LastError = &Error{Err: err, Pattern: e.CurrentPatternIdx, Track: trackIdx, Row: row}
		return
	}

	if cc.Kind == compiler.KindNoteOff {
		e.scheduleCellNoteOff(trackIdx, rowBaseTick)
		return
	}
	if cc.Kind != compiler.KindExpr {
		return
	}

	ctx := e.buildContext(pat, trackIdx, tr, row)
	phrase, err := e.Eval.EvaluateCell(cc, ctx)
	if err != nil {
		e.LastError = &Error{Err: err, Pattern: e.CurrentPatternIdx, Track: trackIdx, Row: row}
		return
	}
	if phrase == nil {
		return
	}

	phrase, err = e.Eval.ApplyFxChain(cc.FX, phrase, ctx)
	if err != nil {
		e.LastError = &Error{Err: err, Pattern: e.CurrentPatternIdx, Track: trackIdx, Row: row}
		return
	}
	trackFX, err := e.Compiler.CompileFxChain(tr.FX)
	if err == nil {
		phrase, err = e.Eval.ApplyFxChain(trackFX, phrase, ctx)
	}
	if err != nil {
		e.LastError = &Error{Err: err, Pattern: e.CurrentPatternIdx, Track: trackIdx, Row: row}
		return
	}
	masterFX, err := e.Compiler.CompileFxChain(e.Song.MasterFX)
	if err == nil {
		phrase, err = e.Eval.ApplyFxChain(masterFX, phrase, ctx)
	}
	if err != nil {
		e.LastError = &Error{Err: err, Pattern: e.CurrentPatternIdx, Track: trackIdx, Row: row}
		return
	}

	if e.Song.SpilloverMode == trackermodel.SpilloverTruncate {
		e.CancelTrack(trackIdx)
		e.TrackNotesOff(trackIdx)
	}

	phraseID := e.nextPhraseID()
	e.schedulePhrase(phrase, rowBaseTick, trackIdx, row, tr, phraseID)
	e.rememberSpillPhrase(trackIdx, phrase, phraseID, rowBaseTick, tr)
}

func (e *Engine) compileCell(cell *trackermodel.Cell, trackIdx, row int) (*compiler.CompiledCell, error) {
	if h := cell.Compiled(); h != nil {
		if cc, ok := h.(*compiler.CompiledCell); ok {
			return cc, nil
		}
	}
	loc := compiler.Location{Pattern: e.CurrentPatternIdx, Track: trackIdx, Row: row}
	cc, err := e.Compiler.Compile(cell, e.Song.DefaultLanguageID, loc)
	if err != nil {
		return nil, err
	}
	cell.SetCompiled(cc)
	return cc, nil
}

func (e *Engine) buildContext(pat *trackermodel.Pattern, trackIdx int, tr *trackermodel.Track, row int) *registry.EvalContext {
	ctx := &registry.EvalContext{
		CurrentPattern: e.CurrentPatternIdx,
		CurrentTrack:   trackIdx,
		CurrentRow:     row,
		TotalTracks:    len(pat.Tracks),
		TotalRows:      pat.NumRows,
		BPM:            e.Song.BPM,
		RowsPerBeat:    e.Song.RowsPerBeat,
		TicksPerRow:    e.Song.TicksPerRow,
		Channel:        tr.DefaultChannel,
		TrackName:      tr.Name,
		SongName:       e.Song.Name,
		AbsoluteTick:   e.CurrentTick,
		AbsoluteTimeMs: float64(e.CurrentTick) * e.TickDurationMs(),
		SpilloverMode:  e.Song.SpilloverMode,
		TrackMuted:     tr.Muted,
		TrackSolo:      tr.Solo,
		LookupPhrase: func(name string) (string, string, bool) {
			entry, ok := e.Song.LookupPhrase(name)
			if !ok {
				return "", "", false
			}
			return entry.Expression, entry.LanguageID, true
		},
	}
	ctx.Reseed(e.evaluationSeed(trackIdx, row))
	return ctx
}

// evaluationSeed derives a per-evaluation seed from the engine's base
// seed plus the cell's grid coordinates, so repeated evaluation of the
// same cell at the same position reproduces (P6) while different
// cells still diverge.
func (e *Engine) evaluationSeed(trackIdx, row int) uint32 {
	seed := e.RandomSeed
	if seed == 0 {
		seed = 1
	}
	mix := uint32(e.CurrentPatternIdx)*1000003 + uint32(trackIdx)*9176 + uint32(row)*131
	return seed ^ mix
}

func (e *Engine) nextPhraseID() uint64 {
	e.phraseIDGen++
	return e.phraseIDGen
}

// schedulePhrase translates phrase's events into pending entries
// anchored at rowBaseTick (§4.5 "Phrase to schedule translation").
func (e *Engine) schedulePhrase(phrase *trackermodel.Phrase, rowBaseTick int64, trackIdx, row int, tr *trackermodel.Track, phraseID uint64) {
	src := source{Pattern: e.CurrentPatternIdx, Track: trackIdx, Row: row, PhraseID: phraseID}
	for _, ev := range phrase.Events {
		e.scheduleEvent(ev, rowBaseTick, trackIdx, tr, src)
	}
}

func (e *Engine) scheduleEvent(ev trackermodel.Event, rowBaseTick int64, trackIdx int, tr *trackermodel.Track, src source) {
	ticksPerRow := int64(e.Song.TicksPerRow)
	due := rowBaseTick + int64(ev.OffsetRows)*ticksPerRow + int64(ev.OffsetTicks)
	due += e.swingTicks(ev.OffsetRows)

	channel := ev.Channel
	if channel == 0 {
		channel = tr.DefaultChannel
	}
	channel = trackermodel.ClampChannel(channel)

	switch ev.Type {
	case trackermodel.NoteOn:
		e.enqueue(&pendingEntry{DueTick: due, Kind: pendNoteOn, Channel: channel, Note: ev.Data1, Value: ev.Data2, Source: src})
		gate := int64(ev.TotalGateTicks(e.Song.TicksPerRow))
		if gate > 0 {
			e.enqueue(&pendingEntry{DueTick: due + gate, Kind: pendNoteOff, Channel: channel, Note: ev.Data1, Source: src})
		}
	case trackermodel.NoteOff:
		if ev.Data1 == trackermodel.AllNotesSentinel {
			e.enqueue(&pendingEntry{DueTick: due, Kind: pendTrackNoteOff, Channel: channel, Source: source{Pattern: src.Pattern, Track: trackIdx, Row: src.Row, PhraseID: src.PhraseID}})
		} else {
			e.enqueue(&pendingEntry{DueTick: due, Kind: pendNoteOff, Channel: channel, Note: ev.Data1, Source: src})
		}
	case trackermodel.CC:
		e.enqueue(&pendingEntry{DueTick: due, Kind: pendCC, Channel: channel, Note: ev.Data1, Value: ev.Data2, Source: src})
	case trackermodel.ProgramChange:
		e.enqueue(&pendingEntry{DueTick: due, Kind: pendProgramChange, Channel: channel, Value: ev.Data1, Source: src})
	case trackermodel.PitchBend:
		e.enqueue(&pendingEntry{DueTick: due, Kind: pendPitchBend, Channel: channel, Value: ev.Data1, Source: src})
	case trackermodel.Aftertouch:
		e.enqueue(&pendingEntry{DueTick: due, Kind: pendAftertouch, Channel: channel, Value: ev.Data1, Source: src})
	case trackermodel.PolyAftertouch:
		e.enqueue(&pendingEntry{DueTick: due, Kind: pendPolyAftertouch, Channel: channel, Note: ev.Data1, Value: ev.Data2, Source: src})
	}
}

// swingTicks computes the scheduling-time bias for rows whose
// row%rows_per_beat is odd (§4.5 "Swing"). offsetRows is relative to
// the anchor row; swing is evaluated against the absolute row it lands
// on.
func (e *Engine) swingTicks(offsetRows int) int64 {
	if e.SwingAmount == 0 {
		return 0
	}
	row := e.CurrentRow + offsetRows
	rpb := e.Song.RowsPerBeat
	if rpb <= 0 || row%rpb%2 == 0 {
		return 0
	}
	biasMs := (float64(e.SwingAmount-50) / 50.0) * (e.RowDurationMs() / 2.0)
	tdm := e.TickDurationMs()
	if tdm <= 0 {
		return 0
	}
	return int64(biasMs / tdm)
}

func (e *Engine) enqueue(entry *pendingEntry) {
	e.seqCounter++
	entry.Seq = e.seqCounter
	if overflowed := e.pending.push(entry); overflowed {
		e.Stats.Underruns++
		log.Printf("[ENGINE] pending queue full, dropping entry due_tick=%d kind=%d", entry.DueTick, entry.Kind)
		return
	}
	e.Stats.EventsScheduled++
}

// drainPending dispatches every entry due at or before windowEnd, in
// tick order with schedule-order tie-breaking (§4.5 step 2, P4).
func (e *Engine) drainPending(windowEnd int64) {
	for {
		top := e.pending.peek()
		if top == nil || top.DueTick > windowEnd {
			return
		}
		entry := e.pending.popFront()
		e.dispatch(entry)
	}
}

func (e *Engine) dispatch(entry *pendingEntry) {
	e.Stats.EventsFired++
	switch entry.Kind {
	case pendNoteOn:
		e.Sink.NoteOn(entry.Channel, entry.Note, entry.Value)
		e.activeNotes[activeNoteKey{entry.Channel, entry.Note}] = &activeNote{
			Channel: entry.Channel, Note: entry.Note, Track: entry.Source.Track,
			PhraseID: entry.Source.PhraseID, StartedTick: entry.DueTick,
		}
		e.Stats.NotesOn++
	case pendNoteOff:
		e.Sink.NoteOff(entry.Channel, entry.Note, 0)
		delete(e.activeNotes, activeNoteKey{entry.Channel, entry.Note})
		e.Stats.NotesOff++
	case pendCC:
		e.Sink.CC(entry.Channel, entry.Note, entry.Value)
	case pendProgramChange:
		e.Sink.ProgramChange(entry.Channel, entry.Value)
	case pendPitchBend:
		e.Sink.PitchBend(entry.Channel, entry.Value)
	case pendAftertouch:
		e.Sink.Aftertouch(entry.Channel, entry.Value)
	case pendPolyAftertouch:
		e.Sink.PolyAftertouch(entry.Channel, entry.Note, entry.Value)
	case pendTrackNoteOff:
		e.trackNotesOffImmediate(entry.Source.Track)
	}
}

// maybeLoopSpillover reschedules a track's last phrase, rebased to
// rowBaseTick, if the Loop spillover policy applies and that phrase
// has already finished (§4.5 "Spillover: Loop").
func (e *Engine) maybeLoopSpillover(trackIdx int, rowBaseTick int64) {
	if e.Song.SpilloverMode != trackermodel.SpilloverLoop {
		return
	}
	st := e.spillState[trackIdx]
	if st == nil || !st.hasPhrase || st.phraseEndTick > e.CurrentTick {
		return
	}
	pat := e.currentPattern()
	if pat == nil || trackIdx >= len(pat.Tracks) {
		return
	}
	tr := pat.Tracks[trackIdx]
	phraseID := e.nextPhraseID()
	e.schedulePhrase(st.lastPhrase, rowBaseTick, trackIdx, e.CurrentRow, tr, phraseID)
	e.rememberSpillPhrase(trackIdx, st.lastPhrase, phraseID, rowBaseTick, tr)
}

func (e *Engine) rememberSpillPhrase(trackIdx int, phrase *trackermodel.Phrase, phraseID uint64, rowBaseTick int64, tr *trackermodel.Track) {
	_, maxTicks := phrase.TickBounds()
	endTick := rowBaseTick + int64(maxTicks) + int64(e.Song.TicksPerRow)
	for _, ev := range phrase.Events {
		total := rowBaseTick + int64(ev.OffsetRows)*int64(e.Song.TicksPerRow) + int64(ev.OffsetTicks) + int64(ev.TotalGateTicks(e.Song.TicksPerRow))
		if total > endTick {
			endTick = total
		}
	}
	e.spillState[trackIdx] = &trackSpillState{lastPhrase: phrase, lastPhraseID: phraseID, phraseEndTick: endTick, hasPhrase: true}
}

func (e *Engine) scheduleCellNoteOff(trackIdx int, rowBaseTick int64) {
	e.enqueue(&pendingEntry{DueTick: rowBaseTick, Kind: pendTrackNoteOff, Source: source{Pattern: e.CurrentPatternIdx, Track: trackIdx, Row: e.CurrentRow}})
}

func (e *Engine) trackNotesOffImmediate(trackIdx int) {
	for key, n := range e.activeNotes {
		if n.Track != trackIdx {
			continue
		}
		e.Sink.NoteOff(n.Channel, n.Note, 0)
		delete(e.activeNotes, key)
		e.Stats.NotesOff++
		e.Stats.EventsFired++
	}
}

// AllNotesOff emits NoteOff for every active note, or only those on
// channel if channel != AllChannels.
func (e *Engine) AllNotesOff(channel int) {
	for key, n := range e.activeNotes {
		if channel != AllChannels && n.Channel != channel {
			continue
		}
		e.Sink.NoteOff(n.Channel, n.Note, 0)
		delete(e.activeNotes, key)
		e.Stats.NotesOff++
		e.Stats.EventsFired++
	}
	e.Sink.AllNotesOff(channel)
}

// ChannelNotesOff emits NoteOff for every active note on channel.
func (e *Engine) ChannelNotesOff(channel int) { e.AllNotesOff(channel) }

// TrackNotesOff emits NoteOff for every active note owned by trackIdx.
func (e *Engine) TrackNotesOff(trackIdx int) { e.trackNotesOffImmediate(trackIdx) }

// ActiveNoteCount reports how many notes are currently tracked as
// sounding, used by tests asserting P3.
func (e *Engine) ActiveNoteCount() int { return len(e.activeNotes) }

// CancelAll removes every pending entry (§5 cancel_all).
func (e *Engine) CancelAll() {
	e.pending.removeWhere(func(*pendingEntry) bool { return true })
}

// CancelTrack removes every pending entry originating from trackIdx
// (§5 cancel_track).
func (e *Engine) CancelTrack(trackIdx int) {
	e.pending.removeWhere(func(p *pendingEntry) bool { return p.Source.Track == trackIdx })
}

// CancelPhrase removes every pending entry originating from phraseID
// (§5 cancel_phrase).
func (e *Engine) CancelPhrase(phraseID uint64) {
	e.pending.removeWhere(func(p *pendingEntry) bool { return p.Source.PhraseID == phraseID })
}

// Seek moves position atomically to (patternIdx, row): clears the
// pending queue, optionally emits note-offs for active notes, and
// resets current_tick to the target row's tick (§4.5 "Seek").
// Calling Seek twice with the same target is idempotent (P5).
func (e *Engine) Seek(patternIdx, row int) {
	e.CancelAll()
	if e.SendAllNotesOffOnSeek {
		e.AllNotesOff(AllChannels)
	}
	e.CurrentPatternIdx = patternIdx
	e.CurrentRow = row
	e.CurrentTick = int64(row) * int64(e.Song.TicksPerRow)
	e.nextScanTick = e.CurrentTick
}

// StepRow advances position by exactly one row, synchronously,
// without real-time pacing (§4.5 "Immediate operations").
func (e *Engine) StepRow() {
	e.scanRow(e.CurrentTick)
	e.drainPending(e.CurrentTick)
	e.nextScanTick = e.CurrentTick + int64(e.Song.TicksPerRow)
	e.advanceRowPosition()
	e.CurrentTick = e.nextScanTick
}

// StepTick advances position by exactly one tick, draining anything
// due, without scanning a new row unless one is crossed.
func (e *Engine) StepTick() {
	e.CurrentTick++
	if e.nextScanTick <= e.CurrentTick {
		e.scanRow(e.nextScanTick)
		e.nextScanTick += int64(e.Song.TicksPerRow)
		e.advanceRowPosition()
	}
	e.drainPending(e.CurrentTick)
}

// TriggerCell evaluates and schedules pattern/track/row's cell at the
// current tick without advancing position (§4.5 "trigger_cell").
func (e *Engine) TriggerCell(patternIdx, trackIdx, row int) error {
	if patternIdx < 0 || patternIdx >= len(e.Song.Patterns) {
		return fmt.Errorf("engine: unknown pattern %d", patternIdx)
	}
	pat := e.Song.Patterns[patternIdx]
	if trackIdx < 0 || trackIdx >= len(pat.Tracks) {
		return fmt.Errorf("engine: unknown track %d", trackIdx)
	}
	tr := pat.Tracks[trackIdx]
	if row < 0 || row >= len(tr.Cells) {
		return fmt.Errorf("engine: unknown row %d", row)
	}
	saved := e.CurrentPatternIdx
	e.CurrentPatternIdx = patternIdx
	e.scanCell(pat, trackIdx, tr, row, tr.Cells[row], e.CurrentTick)
	e.CurrentPatternIdx = saved
	return nil
}

// EvalImmediate evaluates an ad-hoc expression against a fresh context
// and schedules the result at the current tick (§4.5 "eval_immediate").
func (e *Engine) EvalImmediate(expr, languageID string, channel int) error {
	plugin, ok := e.Registry.Find(languageID)
	if !ok {
		return fmt.Errorf("engine: unknown language %q", languageID)
	}
	if !plugin.Capabilities().Has(registry.CapEvaluate) {
		return fmt.Errorf("engine: plugin %q cannot evaluate", plugin.LanguageID())
	}
	ctx := &registry.EvalContext{
		CurrentPattern: e.CurrentPatternIdx,
		CurrentRow:     e.CurrentRow,
		BPM:            e.Song.BPM,
		RowsPerBeat:    e.Song.RowsPerBeat,
		TicksPerRow:    e.Song.TicksPerRow,
		Channel:        channel,
		SongName:       e.Song.Name,
		AbsoluteTick:   e.CurrentTick,
		AbsoluteTimeMs: float64(e.CurrentTick) * e.TickDurationMs(),
		SpilloverMode:  e.Song.SpilloverMode,
		LookupPhrase: func(name string) (string, string, bool) {
			entry, ok := e.Song.LookupPhrase(name)
			if !ok {
				return "", "", false
			}
			return entry.Expression, entry.LanguageID, true
		},
	}
	ctx.Reseed(e.RandomSeed)
	phrase, err := plugin.Evaluate(expr, ctx)
	if err != nil {
		return err
	}
	if phrase == nil {
		return nil
	}
	fakeTrack := &trackermodel.Track{DefaultChannel: channel}
	phraseID := e.nextPhraseID()
	src := source{Pattern: e.CurrentPatternIdx, Track: -1, Row: e.CurrentRow, PhraseID: phraseID}
	for _, ev := range phrase.Events {
		e.scheduleEvent(ev, e.CurrentTick, -1, fakeTrack, src)
	}
	return nil
}

// ExternalClock advances the engine by one external MIDI clock pulse
// (24 pulses per quarter note), used when SyncMode==SyncExternalMidi.
func (e *Engine) ExternalClock() {
	if e.SyncMode != SyncExternalMidi {
		return
	}
	pulseMs := 60000.0 / (e.Song.BPM * 24.0)
	e.advance(pulseMs)
	e.Sink.Clock()
}

// ExternalStart/ExternalStop/ExternalContinue mirror the transport
// triggers an external MIDI clock source sends.
func (e *Engine) ExternalStart()    { e.Play() }
func (e *Engine) ExternalStop()     { e.Stop() }
func (e *Engine) ExternalContinue() { e.State = Playing; e.Sink.Continue() }

// LinkUpdate advances the engine to match an Ableton-Link-style
// periodic hint, used when SyncMode==SyncExternalLink. beat is the
// session's current beat position; the engine computes how many ticks
// have elapsed since its own last-known beat and advances by that
// amount.
func (e *Engine) LinkUpdate(beat, bpm float64, isPlaying bool) {
	if e.SyncMode != SyncExternalLink {
		return
	}
	if bpm > 0 {
		e.Song.BPM = trackermodel.ClampBPM(bpm)
	}
	if !isPlaying {
		e.State = Stopped
		return
	}
	if e.State != Playing {
		e.Play()
	}
	targetTick := int64(beat * float64(e.Song.RowsPerBeat) * float64(e.Song.TicksPerRow))
	if targetTick <= e.CurrentTick {
		return
	}
	deltaTicks := targetTick - e.CurrentTick
	e.advance(float64(deltaTicks) * e.TickDurationMs())
}
