package trackermodel

// Track is one lane of a pattern: a name, routing (channel/volume/pan),
// mute/solo, its own FX chain, and a row of cells whose length always
// equals the owning pattern's NumRows (invariant I1/I2).
type Track struct {
	Name           string   `json:"name"`
	DefaultChannel int      `json:"default_channel"` // 0-15
	Volume         int      `json:"volume"`          // 0-127, default 100
	Pan            int      `json:"pan"`             // -64..+63
	Muted          bool     `json:"muted"`
	Solo           bool     `json:"solo"`
	FX             *FxChain `json:"fx_chain"`
	Cells          []*Cell  `json:"cells"`
}

// NewTrack returns a track with numRows empty cells and sane defaults,
// mirroring the teacher's volume/pan/channel defaults.
func NewTrack(name string, numRows int) *Track {
	t := &Track{
		Name:           name,
		DefaultChannel: 0,
		Volume:         100,
		Pan:            0,
		FX:             NewFxChain(),
		Cells:          make([]*Cell, numRows),
	}
	for i := range t.Cells {
		t.Cells[i] = NewCell()
	}
	return t
}

// Resize grows or shrinks Cells to numRows, preserving existing cells
// and filling new rows with empty cells (I2: resizing a pattern
// resizes every track's cell vector in lockstep — the pattern calls
// this on every track it owns).
func (t *Track) Resize(numRows int) {
	if numRows == len(t.Cells) {
		return
	}
	if numRows < len(t.Cells) {
		t.Cells = t.Cells[:numRows]
		return
	}
	grown := make([]*Cell, numRows)
	copy(grown, t.Cells)
	for i := len(t.Cells); i < numRows; i++ {
		grown[i] = NewCell()
	}
	t.Cells = grown
}

// Clone deep-copies the track, including all of its cells.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	out := &Track{
		Name:           t.Name,
		DefaultChannel: t.DefaultChannel,
		Volume:         t.Volume,
		Pan:            t.Pan,
		Muted:          t.Muted,
		Solo:           t.Solo,
		FX:             t.FX.Clone(),
		Cells:          make([]*Cell, len(t.Cells)),
	}
	for i, c := range t.Cells {
		out.Cells[i] = c.Clone()
	}
	return out
}

// ClampVolume clamps a volume value into [0,127].
func ClampVolume(v int) int { return clampInt(v, 0, 127) }

// ClampPan clamps a pan value into [-64,63].
func ClampPan(v int) int { return clampInt(v, -64, 63) }
