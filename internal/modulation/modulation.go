// Package modulation supplies musical scale tables and scale
// quantization, shared by the notes plugin's "scale" transform and any
// future plugin that wants the same quantization behavior.
package modulation

// Scale represents a musical scale as MIDI note offsets within an
// octave.
type Scale struct {
	Name  string
	Notes []int // MIDI note offsets within an octave (0-11)
}

// Scales is the predefined scale table.
var Scales = map[string]Scale{
	"all": {
		Name:  "All Notes",
		Notes: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
	"major": {
		Name:  "Major",
		Notes: []int{0, 2, 4, 5, 7, 9, 11},
	},
	"minor": {
		Name:  "Minor",
		Notes: []int{0, 2, 3, 5, 7, 8, 10},
	},
	"dorian": {
		Name:  "Dorian",
		Notes: []int{0, 2, 3, 5, 7, 9, 10},
	},
	"mixolydian": {
		Name:  "Mixolydian",
		Notes: []int{0, 2, 4, 5, 7, 9, 10},
	},
	"pentatonic": {
		Name:  "Pentatonic",
		Notes: []int{0, 2, 4, 7, 9},
	},
	"blues": {
		Name:  "Blues",
		Notes: []int{0, 3, 5, 6, 7, 10},
	},
	"chromatic": {
		Name:  "Chromatic",
		Notes: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
}

// NoteNames is the chromatic-scale note name table, C through B.
var NoteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// GetScaleNames returns every known scale's name.
func GetScaleNames() []string {
	names := make([]string, 0, len(Scales))
	for name := range Scales {
		names = append(names, name)
	}
	return names
}

// GetNoteNames returns the chromatic note name table.
func GetNoteNames() []string {
	return NoteNames
}

// QuantizeToScale snaps a MIDI note to the closest note in the named
// scale, rooted at scaleRoot (0-11, C=0). An unknown scale name is a
// no-op, matching the teacher's forgiving default.
func QuantizeToScale(note int, scaleName string, scaleRoot int) int {
	scale, exists := Scales[scaleName]
	if !exists {
		return note
	}

	if note < 0 {
		octaves := (-note / 12) + 1
		note += octaves * 12
	}

	noteInOctave := note % 12

	transposedNote := (noteInOctave - scaleRoot + 12) % 12

	minDistance := 12
	closestNote := transposedNote
	for _, scaleNote := range scale.Notes {
		for _, candidate := range []int{scaleNote - 12, scaleNote, scaleNote + 12} {
			distance := abs(transposedNote - candidate)
			if distance < minDistance {
				minDistance = distance
				closestNote = candidate
			}
		}
	}

	return note + closestNote - transposedNote
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
