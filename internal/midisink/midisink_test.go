package midisink

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// testResolve mirrors resolvePortName's matching logic against a supplied
// device list, without calling the real midi.GetOutPorts() driver.
func testResolve(name string, available []string) (string, error) {
	for _, n := range available {
		if strings.EqualFold(n, name) {
			return n, nil
		}
	}
	for _, n := range available {
		if strings.HasPrefix(strings.ToLower(n), strings.ToLower(name)) {
			return n, nil
		}
	}
	for _, n := range available {
		if strings.Contains(strings.ToLower(n), strings.ToLower(name)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("no MIDI output port matching %q", name)
}

func TestResolvePortNameExactMatchWins(t *testing.T) {
	devices := []string{"IAC Driver Bus 1", "IAC Driver Bus 2"}
	got, err := testResolve("IAC Driver Bus 1", devices)
	assert.NoError(t, err)
	assert.Equal(t, "IAC Driver Bus 1", got)
}

func TestResolvePortNamePrefixMatch(t *testing.T) {
	devices := []string{"USB MIDI Device", "Internal MIDI"}
	got, err := testResolve("USB", devices)
	assert.NoError(t, err)
	assert.Equal(t, "USB MIDI Device", got)
}

func TestResolvePortNameSubstringFallback(t *testing.T) {
	devices := []string{"Arturia KeyLab 61 mkII"}
	got, err := testResolve("keylab", devices)
	assert.NoError(t, err)
	assert.Equal(t, "Arturia KeyLab 61 mkII", got)
}

func TestResolvePortNameNoMatch(t *testing.T) {
	_, err := testResolve("nonexistent", []string{"USB MIDI Device"})
	assert.Error(t, err)
}

func TestSinkNoteOnTracksActiveNotesForClose(t *testing.T) {
	s := &Sink{notesOn: make(map[[2]int]bool)}
	s.NoteOn(0, 60, 100) // opened=false: nothing is sent, but the note is tracked
	assert.Len(t, s.notesOn, 1)
	s.NoteOff(0, 60, 0)
	assert.Len(t, s.notesOn, 0)
}

func TestSinkNotOpenedSendIsNoOp(t *testing.T) {
	s := &Sink{notesOn: make(map[[2]int]bool)}
	s.send([]byte{0x90, 60, 100}) // opened=false, must not panic on nil out
}
