package notesplugin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/schollz/collidertracker/internal/music"
)

// splitParams splits a comma-separated params string into trimmed
// fields. An empty string yields no fields.
func splitParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func intField(fields []string, idx int, def int) int {
	if idx >= len(fields) || fields[idx] == "" {
		return def
	}
	v, err := strconv.Atoi(fields[idx])
	if err != nil {
		return def
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parsePivot accepts either a bare MIDI integer or a note literal like
// "C4" for the invert transform's pivot parameter.
func parsePivot(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return clamp(v, 0, 127), nil
	}
	if len(raw) == 0 {
		return def, nil
	}
	letter := raw[0]
	i := 1
	var accidentals strings.Builder
	for i < len(raw) && (raw[i] == '#' || raw[i] == 'b') {
		accidentals.WriteByte(raw[i])
		i++
	}
	octStart := i
	for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
		i++
	}
	hasOctave := i > octStart
	octave := 4
	if hasOctave {
		o, _ := strconv.Atoi(raw[octStart:i])
		octave = o
	}
	midi, ok := music.NoteNameToMidi(letter, accidentals.String(), octave, hasOctave)
	if !ok {
		return 0, fmt.Errorf("invalid pivot %q", raw)
	}
	return midi, nil
}
