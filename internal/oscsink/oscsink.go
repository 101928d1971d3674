// Package oscsink mirrors every engine OutputSink callback as an OSC
// message, for hosts that want to drive a synth engine (SuperCollider,
// Pure Data, a Max patch) alongside or instead of real MIDI hardware.
package oscsink

import (
	"fmt"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/collidertracker/internal/engine"
)

var _ engine.OutputSink = (*Sink)(nil)

// Sink sends one OSC message per callback to a fixed host:port, under a
// configurable address prefix (default "/tracker").
type Sink struct {
	client *osc.Client
	prefix string
}

// New dials an OSC client targeting host:port. go-osc's client is a plain
// UDP wrapper with no handshake, so there is nothing to fail here.
func New(host string, port int) *Sink {
	return &Sink{client: osc.NewClient(host, port), prefix: "/tracker"}
}

// WithPrefix overrides the default "/tracker" address prefix.
func (s *Sink) WithPrefix(prefix string) *Sink {
	s.prefix = prefix
	return s
}

func (s *Sink) addr(suffix string) string {
	return s.prefix + suffix
}

func (s *Sink) send(msg *osc.Message) {
	// go-osc's Send returns an error only on a write(2) failure; mirroring
	// is best-effort; a dropped OSC packet does not affect MIDI transport.
	_ = s.client.Send(msg)
}

func (s *Sink) NoteOn(channel, note, velocity int) {
	msg := osc.NewMessage(s.addr("/noteOn"))
	msg.Append(int32(channel))
	msg.Append(int32(note))
	msg.Append(int32(velocity))
	s.send(msg)
}

func (s *Sink) NoteOff(channel, note, releaseVelocity int) {
	msg := osc.NewMessage(s.addr("/noteOff"))
	msg.Append(int32(channel))
	msg.Append(int32(note))
	msg.Append(int32(releaseVelocity))
	s.send(msg)
}

func (s *Sink) CC(channel, cc, value int) {
	msg := osc.NewMessage(s.addr("/cc"))
	msg.Append(int32(channel))
	msg.Append(int32(cc))
	msg.Append(int32(value))
	s.send(msg)
}

func (s *Sink) ProgramChange(channel, program int) {
	msg := osc.NewMessage(s.addr("/programChange"))
	msg.Append(int32(channel))
	msg.Append(int32(program))
	s.send(msg)
}

func (s *Sink) PitchBend(channel, value int) {
	msg := osc.NewMessage(s.addr("/pitchBend"))
	msg.Append(int32(channel))
	msg.Append(int32(value))
	s.send(msg)
}

func (s *Sink) Aftertouch(channel, pressure int) {
	msg := osc.NewMessage(s.addr("/aftertouch"))
	msg.Append(int32(channel))
	msg.Append(int32(pressure))
	s.send(msg)
}

func (s *Sink) PolyAftertouch(channel, note, pressure int) {
	msg := osc.NewMessage(s.addr("/polyAftertouch"))
	msg.Append(int32(channel))
	msg.Append(int32(note))
	msg.Append(int32(pressure))
	s.send(msg)
}

func (s *Sink) AllNotesOff(channel int) {
	msg := osc.NewMessage(s.addr("/allNotesOff"))
	msg.Append(int32(channel))
	s.send(msg)
}

func (s *Sink) Clock()    { s.send(osc.NewMessage(s.addr("/clock"))) }
func (s *Sink) Start()    { s.send(osc.NewMessage(s.addr("/start"))) }
func (s *Sink) Stop()     { s.send(osc.NewMessage(s.addr("/stop"))) }
func (s *Sink) Continue() { s.send(osc.NewMessage(s.addr("/continue"))) }

// String satisfies fmt.Stringer for debug logging of sink identity.
func (s *Sink) String() string {
	return fmt.Sprintf("oscsink(prefix=%s)", s.prefix)
}
