package engine

import "container/heap"

// pendingKind distinguishes what a pendingEntry does on dispatch. Only
// NoteOn/NoteOff carry a gate relationship; the rest are fire-and-forget.
type pendingKind int

const (
	pendNoteOn pendingKind = iota
	pendNoteOff
	pendCC
	pendProgramChange
	pendPitchBend
	pendAftertouch
	pendPolyAftertouch
	pendTrackNoteOff // CellNoteOff sentinel: emits NoteOff for every active note owned by Track
)

// source identifies where a pending entry came from, so the engine can
// cancel events by origin (§4.5 "cancel events by origin").
type source struct {
	Pattern, Track, Row int
	PhraseID            uint64
}

// pendingEntry is one scheduled dispatch.
type pendingEntry struct {
	DueTick int64
	Seq     uint64 // insertion order, breaks due_tick ties (P4)

	Kind    pendingKind
	Channel int
	Note    int
	Value   int // velocity / cc value / program / pitch bend / pressure, depending on Kind

	Source source
}

// pendingQueue is a container/heap-ordered min-queue keyed by
// (DueTick, Seq). The standard library heap is used rather than a
// hand-rolled structure: nothing in the example pack implements a
// priority queue, and container/heap is the idiomatic stdlib tool for
// exactly this shape.
type pendingQueue struct {
	items    []*pendingEntry
	capacity int
}

func newPendingQueue(capacity int) *pendingQueue {
	pq := &pendingQueue{capacity: capacity}
	heap.Init(pq)
	return pq
}

func (pq *pendingQueue) Len() int { return len(pq.items) }

func (pq *pendingQueue) Less(i, j int) bool {
	if pq.items[i].DueTick != pq.items[j].DueTick {
		return pq.items[i].DueTick < pq.items[j].DueTick
	}
	return pq.items[i].Seq < pq.items[j].Seq
}

func (pq *pendingQueue) Swap(i, j int) { pq.items[i], pq.items[j] = pq.items[j], pq.items[i] }

func (pq *pendingQueue) Push(x any) { pq.items = append(pq.items, x.(*pendingEntry)) }

func (pq *pendingQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	pq.items = old[:n-1]
	return item
}

// push adds e to the queue, or drops it (reporting overflow) if the
// queue is already at capacity (§4.5 "overflow yields a recorded
// underrun, drops the newest entry").
func (pq *pendingQueue) push(e *pendingEntry) (overflowed bool) {
	if pq.capacity > 0 && pq.Len() >= pq.capacity {
		return true
	}
	heap.Push(pq, e)
	return false
}

// peek returns the earliest-due entry without removing it.
func (pq *pendingQueue) peek() *pendingEntry {
	if pq.Len() == 0 {
		return nil
	}
	return pq.items[0]
}

// popFront removes and returns the earliest-due entry.
func (pq *pendingQueue) popFront() *pendingEntry {
	return heap.Pop(pq).(*pendingEntry)
}

// removeWhere deletes every entry matching pred, restoring heap order.
// Used by cancel_all/cancel_track/cancel_phrase. Removed entries are
// simply dropped: the queue keeps no free list and does not recycle
// entries.
func (pq *pendingQueue) removeWhere(pred func(*pendingEntry) bool) {
	kept := pq.items[:0]
	for _, e := range pq.items {
		if !pred(e) {
			kept = append(kept, e)
		}
	}
	pq.items = kept
	heap.Init(pq)
}

// activeNoteKey identifies a sounding note for the active-note table.
type activeNoteKey struct {
	Channel, Note int
}

// activeNote is one entry in the engine's active-note table.
type activeNote struct {
	Channel, Note      int
	Track              int
	PhraseID           uint64
	StartedTick        int64
	ScheduledOffTick   int64
}
