package midisink

import "github.com/schollz/collidertracker/internal/engine"

// Fanout broadcasts every engine.OutputSink callback to a fixed set of
// sinks, in order, so an Engine can drive a real MIDI port and an OSC
// mirror at once without knowing either exists — analogous to the
// teacher driving SuperCollider and MIDI hardware from the same note
// events.
type Fanout struct {
	sinks []engine.OutputSink
}

// NewFanout builds a Fanout over the given sinks. A nil entry is
// skipped rather than rejected, so callers can build the slice
// conditionally (e.g. "midisink only if a port was configured").
func NewFanout(sinks ...engine.OutputSink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) NoteOn(channel, note, velocity int) {
	for _, s := range f.sinks {
		s.NoteOn(channel, note, velocity)
	}
}

func (f *Fanout) NoteOff(channel, note, releaseVelocity int) {
	for _, s := range f.sinks {
		s.NoteOff(channel, note, releaseVelocity)
	}
}

func (f *Fanout) CC(channel, cc, value int) {
	for _, s := range f.sinks {
		s.CC(channel, cc, value)
	}
}

func (f *Fanout) ProgramChange(channel, program int) {
	for _, s := range f.sinks {
		s.ProgramChange(channel, program)
	}
}

func (f *Fanout) PitchBend(channel, value int) {
	for _, s := range f.sinks {
		s.PitchBend(channel, value)
	}
}

func (f *Fanout) Aftertouch(channel, pressure int) {
	for _, s := range f.sinks {
		s.Aftertouch(channel, pressure)
	}
}

func (f *Fanout) PolyAftertouch(channel, note, pressure int) {
	for _, s := range f.sinks {
		s.PolyAftertouch(channel, note, pressure)
	}
}

func (f *Fanout) AllNotesOff(channel int) {
	for _, s := range f.sinks {
		s.AllNotesOff(channel)
	}
}

func (f *Fanout) Clock() {
	for _, s := range f.sinks {
		s.Clock()
	}
}

func (f *Fanout) Start() {
	for _, s := range f.sinks {
		s.Start()
	}
}

func (f *Fanout) Stop() {
	for _, s := range f.sinks {
		s.Stop()
	}
}

func (f *Fanout) Continue() {
	for _, s := range f.sinks {
		s.Continue()
	}
}
