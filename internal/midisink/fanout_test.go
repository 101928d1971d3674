package midisink

import (
	"testing"

	"github.com/schollz/collidertracker/internal/engine"
	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	engine.NoOpSink
	noteOns  int
	noteOffs int
}

func (s *recordingSink) NoteOn(channel, note, velocity int)         { s.noteOns++ }
func (s *recordingSink) NoteOff(channel, note, releaseVelocity int) { s.noteOffs++ }

func TestFanoutBroadcastsToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := NewFanout(a, b)

	f.NoteOn(0, 60, 100)
	f.NoteOff(0, 60, 0)

	assert.Equal(t, 1, a.noteOns)
	assert.Equal(t, 1, b.noteOns)
	assert.Equal(t, 1, a.noteOffs)
	assert.Equal(t, 1, b.noteOffs)
}

func TestFanoutSkipsNilSinks(t *testing.T) {
	a := &recordingSink{}
	f := NewFanout(a, nil)
	assert.Len(t, f.sinks, 1)
	f.NoteOn(0, 60, 100) // must not panic despite the nil entry being dropped
	assert.Equal(t, 1, a.noteOns)
}
