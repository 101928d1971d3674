// Package midisink adapts the engine's OutputSink vector onto a real MIDI
// output port via gitlab.com/gomidi/midi/v2. Unlike the original
// goroutine-per-note player this is grounded on, timing is no longer this
// package's job: the engine already schedules note-off via its own pending
// queue, so Sink only ever translates one already-due callback into one
// wire message, synchronously, on whatever goroutine the engine calls it
// from.
package midisink

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/schollz/collidertracker/internal/engine"
)

var _ engine.OutputSink = (*Sink)(nil)

// Sink sends every OutputSink callback to one open MIDI output port.
// Channel is taken from the callback argument, not fixed at construction,
// since the engine multiplexes many tracker channels onto one sink.
type Sink struct {
	mu      sync.Mutex
	name    string
	out     drivers.Out
	opened  bool
	notesOn map[[2]int]bool // (channel, note) -> sounding, for Close's safety sweep
}

// Open finds a MIDI output port whose name matches (exact, then prefix,
// then substring, case-insensitive) and opens it.
func Open(name string) (*Sink, error) {
	fullName, err := resolvePortName(name)
	if err != nil {
		return nil, err
	}
	out, err := midi.FindOutPort(fullName)
	if err != nil {
		return nil, fmt.Errorf("midisink: find port %q: %w", fullName, err)
	}
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("midisink: open port %q: %w", fullName, err)
	}
	return &Sink{name: fullName, out: out, opened: true, notesOn: make(map[[2]int]bool)}, nil
}

func resolvePortName(name string) (string, error) {
	names := Ports()
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, nil
		}
	}
	for _, n := range names {
		if strings.HasPrefix(strings.ToLower(n), strings.ToLower(name)) {
			return n, nil
		}
	}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), strings.ToLower(name)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("midisink: no MIDI output port matching %q", name)
}

// Ports lists the names of every available MIDI output port.
func Ports() (names []string) {
	for _, out := range midi.GetOutPorts() {
		names = append(names, out.String())
	}
	return
}

// Close sends note-off for anything still sounding, then closes the port.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.notesOn {
		s.send([]byte{0x80 | byte(key[0]&0x0f), byte(key[1] & 0x7f), 0})
	}
	s.notesOn = make(map[[2]int]bool)
	if !s.opened {
		return nil
	}
	s.opened = false
	return s.out.Close()
}

func (s *Sink) send(msg []byte) {
	if !s.opened {
		return
	}
	if err := s.out.Send(msg); err != nil {
		log.Printf("midisink: send error on %s: %v", s.name, err)
	}
}

func (s *Sink) NoteOn(channel, note, velocity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if velocity <= 0 {
		s.send([]byte{0x80 | byte(channel&0x0f), byte(note & 0x7f), 0})
		delete(s.notesOn, [2]int{channel, note})
		return
	}
	s.send([]byte{0x90 | byte(channel&0x0f), byte(note & 0x7f), byte(velocity & 0x7f)})
	s.notesOn[[2]int{channel, note}] = true
}

func (s *Sink) NoteOff(channel, note, releaseVelocity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send([]byte{0x80 | byte(channel&0x0f), byte(note & 0x7f), byte(releaseVelocity & 0x7f)})
	delete(s.notesOn, [2]int{channel, note})
}

func (s *Sink) CC(channel, cc, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send([]byte{0xb0 | byte(channel&0x0f), byte(cc & 0x7f), byte(value & 0x7f)})
}

func (s *Sink) ProgramChange(channel, program int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send([]byte{0xc0 | byte(channel&0x0f), byte(program & 0x7f)})
}

func (s *Sink) PitchBend(channel, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := value + 8192 // engine carries signed -8192..8191, wire is unsigned 14-bit
	if v < 0 {
		v = 0
	}
	if v > 16383 {
		v = 16383
	}
	s.send([]byte{0xe0 | byte(channel&0x0f), byte(v & 0x7f), byte((v >> 7) & 0x7f)})
}

func (s *Sink) Aftertouch(channel, pressure int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send([]byte{0xd0 | byte(channel&0x0f), byte(pressure & 0x7f)})
}

func (s *Sink) PolyAftertouch(channel, note, pressure int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send([]byte{0xa0 | byte(channel&0x0f), byte(note & 0x7f), byte(pressure & 0x7f)})
}

func (s *Sink) AllNotesOff(channel int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channel == 255 {
		for ch := 0; ch < 16; ch++ {
			s.send([]byte{0xb0 | byte(ch), 123, 0})
		}
	} else {
		s.send([]byte{0xb0 | byte(channel&0x0f), 123, 0})
	}
	for key := range s.notesOn {
		if channel == 255 || key[0] == channel {
			delete(s.notesOn, key)
		}
	}
}

func (s *Sink) Clock()    { s.mu.Lock(); defer s.mu.Unlock(); s.send([]byte{0xf8}) }
func (s *Sink) Start()    { s.mu.Lock(); defer s.mu.Unlock(); s.send([]byte{0xfa}) }
func (s *Sink) Stop()     { s.mu.Lock(); defer s.mu.Unlock(); s.send([]byte{0xfc}) }
func (s *Sink) Continue() { s.mu.Lock(); defer s.mu.Unlock(); s.send([]byte{0xfb}) }
