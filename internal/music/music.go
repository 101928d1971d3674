package music

import (
	"fmt"
	"strings"
)

// letterSemitone gives the base semitone offset (within an octave) for
// each natural note letter, C through B.
var letterSemitone = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// NoteNameToMidi parses a note literal of the form
// `[A-Ga-g]('#'|'b')*[digit]{0,2}` — a letter, zero or more stacked
// accidentals ('#' raises, 'b' lowers a semitone each), and an
// optional octave (default 4) — into a clamped MIDI note number. It
// returns ok=false if letter is not a valid note letter.
func NoteNameToMidi(letter byte, accidentals string, octave int, hasOctave bool) (midi int, ok bool) {
	base, known := letterSemitone[lowerByte(letter)]
	if !known {
		return 0, false
	}
	semitone := base
	for _, a := range accidentals {
		switch a {
		case '#':
			semitone++
		case 'b':
			semitone--
		}
	}
	if !hasOctave {
		octave = 4
	}
	midi = (octave+1)*12 + semitone
	if midi < 0 {
		midi = 0
	}
	if midi > 127 {
		midi = 127
	}
	return midi, true
}

func lowerByte(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b - 'A' + 'a'
	}
	return b
}

// MidiToNoteName converts MIDI note number (0-127) to note name like "c-1", "c#4", etc.
// For negative octaves: natural notes show minus (e.g., "c-1"), sharp notes drop minus (e.g., "f#1") - all stay 3 chars
// MIDI note 60 = C4, note 21 = A0, etc.
func MidiToNoteName(midiNote int) string {
	if midiNote < 0 || midiNote > 127 {
		return "---"
	}

	noteNames := []string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}

	// Calculate octave (MIDI note 12 = C0)
	octave := (midiNote / 12) - 1

	// Get note name
	noteName := noteNames[midiNote%12]

	// Always maintain exactly 3 characters for all notes
	if strings.Contains(noteName, "#") {
		// Sharp notes: "c#4", "f#1" (already 3 chars for most cases)
		if octave < 0 {
			return fmt.Sprintf("%s%d", noteName, -octave) // "c#1" for negative
		} else {
			return fmt.Sprintf("%s%d", noteName, octave) // "c#4" for positive
		}
	} else {
		// Natural notes: always use minus separator to reach 3 chars
		if octave < 0 {
			return fmt.Sprintf("%s-%d", noteName, -octave) // "c-1" for negative
		} else {
			return fmt.Sprintf("%s-%d", noteName, octave) // "c-4" for positive
		}
	}
}
