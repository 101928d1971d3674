package trackermodel

import (
	"encoding/json"
	"fmt"
)

// SpilloverMode governs overlap behavior between successive phrases on
// the same track (§4.5).
type SpilloverMode int

const (
	SpilloverLayer SpilloverMode = iota
	SpilloverTruncate
	SpilloverLoop
)

func (m SpilloverMode) String() string {
	switch m {
	case SpilloverLayer:
		return "layer"
	case SpilloverTruncate:
		return "truncate"
	case SpilloverLoop:
		return "loop"
	default:
		return "unknown"
	}
}

func (m SpilloverMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *SpilloverMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "layer":
		*m = SpilloverLayer
	case "truncate":
		*m = SpilloverTruncate
	case "loop":
		*m = SpilloverLoop
	default:
		return fmt.Errorf("trackermodel: unknown spillover mode %q", s)
	}
	return nil
}

// SequenceEntry is one step of the song sequence: a pattern to play
// and how many times to repeat it.
type SequenceEntry struct {
	PatternIndex int `json:"pattern_index"`
	RepeatCount  int `json:"repeat_count"` // >= 1
}

// PhraseLibraryEntry is a named, reusable expression resolvable from a
// notes-plugin "@name" reference or any other plugin's equivalent.
type PhraseLibraryEntry struct {
	Expression string `json:"expression"`
	LanguageID string `json:"language_id"`
}

// Song is the root of the data model: patterns, their play order, and
// song-wide defaults/policy.
type Song struct {
	Name   string `json:"name"`
	Author string `json:"author"`

	BPM         float64 `json:"bpm"`           // 20-300
	RowsPerBeat int     `json:"rows_per_beat"` // default 4
	TicksPerRow int     `json:"ticks_per_row"` // default 6

	Patterns []*Pattern      `json:"patterns"`
	Sequence []SequenceEntry `json:"sequence"`

	SpilloverMode     SpilloverMode `json:"spillover_mode"`
	DefaultLanguageID string        `json:"default_language_id"`

	MasterFX *FxChain `json:"master_fx"`

	PhraseLibrary map[string]PhraseLibraryEntry `json:"phrase_library"`
}

// NewSong returns a song with the spec's stated defaults: 120 BPM,
// rows_per_beat=4, ticks_per_row=6, no patterns or sequence, empty
// master FX and phrase library.
func NewSong(name, author string) *Song {
	return &Song{
		Name:              name,
		Author:            author,
		BPM:               120,
		RowsPerBeat:       4,
		TicksPerRow:       6,
		SpilloverMode:     SpilloverLayer,
		DefaultLanguageID: "",
		MasterFX:          NewFxChain(),
		PhraseLibrary:     make(map[string]PhraseLibraryEntry),
	}
}

// ClampBPM clamps a bpm value into [20,300].
func ClampBPM(bpm float64) float64 {
	if bpm < 20 {
		return 20
	}
	if bpm > 300 {
		return 300
	}
	return bpm
}

// AddPattern appends p to the song's patterns.
func (s *Song) AddPattern(p *Pattern) {
	s.Patterns = append(s.Patterns, p)
}

// RemovePattern deletes patterns[idx], drops every sequence entry that
// referenced it, and decrements the PatternIndex of every remaining
// entry that referenced a higher index (invariant I5).
func (s *Song) RemovePattern(idx int) {
	if idx < 0 || idx >= len(s.Patterns) {
		return
	}
	s.Patterns = append(s.Patterns[:idx], s.Patterns[idx+1:]...)

	filtered := s.Sequence[:0]
	for _, e := range s.Sequence {
		switch {
		case e.PatternIndex == idx:
			continue // dropped along with the pattern
		case e.PatternIndex > idx:
			e.PatternIndex--
			filtered = append(filtered, e)
		default:
			filtered = append(filtered, e)
		}
	}
	s.Sequence = filtered
}

// CheckSequenceIntegrity reports whether every sequence entry
// references an existing pattern (invariant I5, post-condition).
func (s *Song) CheckSequenceIntegrity() bool {
	for _, e := range s.Sequence {
		if e.PatternIndex < 0 || e.PatternIndex >= len(s.Patterns) {
			return false
		}
	}
	return true
}

// LookupPhrase resolves a phrase-library reference by name, returning
// ok=false if it does not exist (§4.4 "@identifier").
func (s *Song) LookupPhrase(name string) (PhraseLibraryEntry, bool) {
	e, ok := s.PhraseLibrary[name]
	return e, ok
}

// Clone deep-copies the song, all of its patterns, and its FX chain.
// The phrase library map is copied, not shared.
func (s *Song) Clone() *Song {
	if s == nil {
		return nil
	}
	out := &Song{
		Name:              s.Name,
		Author:            s.Author,
		BPM:               s.BPM,
		RowsPerBeat:       s.RowsPerBeat,
		TicksPerRow:       s.TicksPerRow,
		SpilloverMode:     s.SpilloverMode,
		DefaultLanguageID: s.DefaultLanguageID,
		MasterFX:          s.MasterFX.Clone(),
		Sequence:          make([]SequenceEntry, len(s.Sequence)),
		Patterns:          make([]*Pattern, len(s.Patterns)),
		PhraseLibrary:     make(map[string]PhraseLibraryEntry, len(s.PhraseLibrary)),
	}
	copy(out.Sequence, s.Sequence)
	for i, p := range s.Patterns {
		out.Patterns[i] = p.Clone()
	}
	for k, v := range s.PhraseLibrary {
		out.PhraseLibrary[k] = v
	}
	return out
}
