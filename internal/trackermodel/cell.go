package trackermodel

import (
	"encoding/json"
	"fmt"
)

// CellType is a closed enumeration of what a grid cell holds.
type CellType int

const (
	Empty CellType = iota
	Expression
	CellNoteOff
	Continuation
)

func (t CellType) String() string {
	switch t {
	case Empty:
		return "empty"
	case Expression:
		return "expression"
	case CellNoteOff:
		return "note_off"
	case Continuation:
		return "continuation"
	default:
		return "unknown"
	}
}

func (t CellType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *CellType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "empty":
		*t = Empty
	case "expression":
		*t = Expression
	case "note_off":
		*t = CellNoteOff
	case "continuation":
		*t = Continuation
	default:
		return fmt.Errorf("trackermodel: unknown cell type %q", s)
	}
	return nil
}

// CompiledHandle is an opaque reference to a cell's compiled form. Only
// the compile cache that issued it knows how to dereference it; the
// cell itself never reaches into the cache's internals (§9 "shared
// mutable cache").
type CompiledHandle interface{}

// Cell is the grid intersection of (row, track): one source
// expression plus its own FX chain and compile cache handle.
//
// Invariant: Type == Expression iff Expression is non-empty. Dirty ==
// true implies the cached compiled form (if any) must be discarded and
// recompiled before next use.
type Cell struct {
	Type       CellType `json:"type"`
	Expression string   `json:"expression"`
	LanguageID string   `json:"language_id"` // "" defers to the song's default_language_id
	FX         *FxChain `json:"fx_chain"`

	compiled CompiledHandle
	Dirty    bool `json:"dirty"`
}

// NewCell returns an empty cell with an empty FX chain.
func NewCell() *Cell {
	return &Cell{Type: Empty, FX: NewFxChain()}
}

// SetExpression installs new source text, updates Type accordingly,
// and marks the cell dirty so its compiled form is discarded (§4.2
// invalidation rules).
func (c *Cell) SetExpression(expr, languageID string) {
	c.Expression = expr
	c.LanguageID = languageID
	if expr == "" {
		c.Type = Empty
	} else {
		c.Type = Expression
	}
	c.MarkDirty()
}

// SetNoteOff turns the cell into a NoteOff sentinel cell.
func (c *Cell) SetNoteOff() {
	c.Expression = ""
	c.Type = CellNoteOff
	c.MarkDirty()
}

// Clear empties the cell.
func (c *Cell) Clear() {
	c.Expression = ""
	c.Type = Empty
	c.MarkDirty()
}

// MarkDirty discards any cached compiled form and flags the cell for
// recompilation before its next use.
func (c *Cell) MarkDirty() {
	c.Dirty = true
	c.compiled = nil
}

// Compiled returns the cell's cached compiled handle, or nil if there
// is none or the cell is dirty.
func (c *Cell) Compiled() CompiledHandle {
	if c.Dirty {
		return nil
	}
	return c.compiled
}

// SetCompiled installs a freshly compiled handle and clears Dirty.
// Called by the engine's compile-cache path after a successful compile.
func (c *Cell) SetCompiled(h CompiledHandle) {
	c.compiled = h
	c.Dirty = false
}

// Clone returns a deep copy. The compiled handle is intentionally
// dropped: clones of a Cell are never assumed to share a compile
// cache, so they come back dirty and get recompiled on first use.
func (c *Cell) Clone() *Cell {
	if c == nil {
		return nil
	}
	return &Cell{
		Type:       c.Type,
		Expression: c.Expression,
		LanguageID: c.LanguageID,
		FX:         c.FX.Clone(),
		Dirty:      true,
	}
}
