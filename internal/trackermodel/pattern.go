package trackermodel

// Pattern is a named grid of tracks sharing a common row count. All
// tracks in a pattern share NumRows (invariant I1/I2).
type Pattern struct {
	Name    string   `json:"name"`
	NumRows int      `json:"num_rows"`
	Tracks  []*Track `json:"tracks"`
}

// NewPattern returns a pattern with numTracks tracks of numRows rows
// each.
func NewPattern(name string, numRows, numTracks int) *Pattern {
	p := &Pattern{Name: name, NumRows: numRows, Tracks: make([]*Track, numTracks)}
	for i := range p.Tracks {
		p.Tracks[i] = NewTrack(trackDefaultName(i), numRows)
	}
	return p
}

func trackDefaultName(i int) string {
	names := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < len(names) {
		return string(names[i])
	}
	return "T"
}

// Resize changes NumRows and resizes every owned track in lockstep,
// preserving invariant I1/I2 under mutation.
func (p *Pattern) Resize(numRows int) {
	p.NumRows = numRows
	for _, t := range p.Tracks {
		t.Resize(numRows)
	}
}

// AddTrack appends a new track with the pattern's current row count.
func (p *Pattern) AddTrack(name string) *Track {
	t := NewTrack(name, p.NumRows)
	p.Tracks = append(p.Tracks, t)
	return t
}

// Clone deep-copies the pattern and all of its tracks.
func (p *Pattern) Clone() *Pattern {
	if p == nil {
		return nil
	}
	out := &Pattern{Name: p.Name, NumRows: p.NumRows, Tracks: make([]*Track, len(p.Tracks))}
	for i, t := range p.Tracks {
		out.Tracks[i] = t.Clone()
	}
	return out
}

// CheckInvariant reports whether every track's cell count matches
// NumRows (P1 Model closure).
func (p *Pattern) CheckInvariant() bool {
	for _, t := range p.Tracks {
		if len(t.Cells) != p.NumRows {
			return false
		}
	}
	return true
}
