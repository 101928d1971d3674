// Package trackermodel holds the core data model: events, phrases, fx
// chains, cells, tracks, patterns and songs. Types here are plain
// records with small methods for cloning, resizing and invariant
// checks.
package trackermodel

import (
	"encoding/json"
	"fmt"
)

// EventType is a closed enumeration of MIDI-shaped event kinds.
type EventType int

const (
	NoteOn EventType = iota
	NoteOff
	CC
	ProgramChange
	PitchBend
	Aftertouch
	PolyAftertouch
)

func (t EventType) String() string {
	switch t {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case CC:
		return "cc"
	case ProgramChange:
		return "program"
	case PitchBend:
		return "pitch_bend"
	case Aftertouch:
		return "aftertouch"
	case PolyAftertouch:
		return "poly_at"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the event type as its spec string rather than the
// underlying int, so the persisted song format (§6) is stable across
// constant renumbering.
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "note_on":
		*t = NoteOn
	case "note_off":
		*t = NoteOff
	case "cc":
		*t = CC
	case "program":
		*t = ProgramChange
	case "pitch_bend":
		*t = PitchBend
	case "aftertouch":
		*t = Aftertouch
	case "poly_at":
		*t = PolyAftertouch
	default:
		return fmt.Errorf("trackermodel: unknown event type %q", s)
	}
	return nil
}

// EventFlags is a bitset of optional per-event behaviors.
type EventFlags uint16

const (
	FlagProbability EventFlags = 1 << iota
	FlagHumanizeTime
	FlagHumanizeVel
	FlagAccent
	FlagLegato
	FlagSlide
	FlagRetrigger
	FlagMute
)

func (f EventFlags) Has(bit EventFlags) bool { return f&bit != 0 }

// AllNotesSentinel is the notes-plugin-internal "all notes" convention
// for NoteOff.Data1. It never reaches the engine's ActiveNotes table or
// an OutputSink unqualified: the engine lowers it to concrete per-note
// offs before dispatch (§9 Open Question, resolved in favor of "plugin
// convention only").
const AllNotesSentinel = 255

// ExtendedParams carries the fields that only matter when an event's
// flags require them. It is allocated lazily so the common case (a
// plain NoteOn/NoteOff with no flags) pays nothing for it.
type ExtendedParams struct {
	ProbabilityPercent int `json:"probability_percent"`  // 0-100
	HumanizeTimeTicks  int `json:"humanize_time_ticks"`  // max absolute jitter in ticks
	HumanizeVelocity   int `json:"humanize_velocity"`    // max absolute jitter in velocity units
	AccentBoost        int `json:"accent_boost"`         // velocity delta added when FlagAccent is set
	RetriggerCount     int `json:"retrigger_count"`      // number of retrigger repeats
	RetriggerRateTicks int `json:"retrigger_rate_ticks"` // ticks between retriggers
	SlideTimeTicks     int `json:"slide_time_ticks"`     // portamento/slide time in ticks
}

// Event is a single MIDI-shaped record, timed relative to its owning
// phrase's anchor row.
type Event struct {
	Type EventType `json:"type"`

	Channel int `json:"channel"` // 0-15
	Data1   int `json:"data1"`   // 0-127 (note number, cc number, program, ...)
	Data2   int `json:"data2"`   // 0-127 (velocity, cc value, ...)

	OffsetRows  int `json:"offset_rows"`  // rows after the phrase anchor
	OffsetTicks int `json:"offset_ticks"` // 0 <= OffsetTicks < ticks_per_row

	GateRows  int `json:"gate_rows"` // NoteOn only: duration before the implicit NoteOff
	GateTicks int `json:"gate_ticks"`

	Flags EventFlags `json:"flags"`

	// Ext is nil unless Flags requires one of its fields.
	Ext *ExtendedParams `json:"ext,omitempty"`
}

// TotalGateTicks returns the event's gate expressed purely in ticks,
// given the song's ticks-per-row. Only meaningful for NoteOn events.
func (e Event) TotalGateTicks(ticksPerRow int) int {
	return e.GateRows*ticksPerRow + e.GateTicks
}

// Clone returns a deep copy of e, including its ExtendedParams.
func (e Event) Clone() Event {
	out := e
	if e.Ext != nil {
		ext := *e.Ext
		out.Ext = &ext
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampChannel clamps a channel value into [0,15].
func ClampChannel(ch int) int { return clampInt(ch, 0, 15) }

// ClampData clamps a data byte into [0,127].
func ClampData(v int) int { return clampInt(v, 0, 127) }
