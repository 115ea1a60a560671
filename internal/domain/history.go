package domain

import (
	"encoding/json"
	"time"
)

const DefaultHistoryCapacity = 10

// CartHistory is a bounded undo/redo stack of cart snapshots.
// cursor points at the state the cart currently reflects; -1 when empty.
type CartHistory struct {
	states   []CartMemento
	cursor   int
	capacity int
}

type HistoryInfo struct {
	TotalStates int  `json:"total_states"`
	Position    int  `json:"position"`
	CanUndo     bool `json:"can_undo"`
	CanRedo     bool `json:"can_redo"`
}

func NewCartHistory(capacity int) *CartHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &CartHistory{cursor: -1, capacity: capacity}
}

// Push records m as the newest state. Anything after the cursor is dropped,
// and the oldest state is evicted once capacity is exceeded.
func (h *CartHistory) Push(m CartMemento) {
	h.states = append(h.states[:h.cursor+1], m)
	h.cursor++

	if len(h.states) > h.capacity {
		h.states = h.states[1:]
		h.cursor--
	}
}

func (h *CartHistory) Undo() (CartMemento, error) {
	if !h.CanUndo() {
		return CartMemento{}, ErrNothingToUndo
	}
	h.cursor--
	return h.states[h.cursor], nil
}

func (h *CartHistory) Redo() (CartMemento, error) {
	if !h.CanRedo() {
		return CartMemento{}, ErrNothingToRedo
	}
	h.cursor++
	return h.states[h.cursor], nil
}

func (h *CartHistory) CanUndo() bool {
	return h.cursor > 0
}

func (h *CartHistory) CanRedo() bool {
	return h.cursor < len(h.states)-1
}

func (h *CartHistory) Current() (CartMemento, bool) {
	if h.cursor < 0 || h.cursor >= len(h.states) {
		return CartMemento{}, false
	}
	return h.states[h.cursor], true
}

func (h *CartHistory) Len() int      { return len(h.states) }
func (h *CartHistory) Position() int { return h.cursor }
func (h *CartHistory) Capacity() int { return h.capacity }

func (h *CartHistory) Clear() {
	h.states = nil
	h.cursor = -1
}

func (h *CartHistory) Info() HistoryInfo {
	return HistoryInfo{
		TotalStates: len(h.states),
		Position:    h.cursor,
		CanUndo:     h.CanUndo(),
		CanRedo:     h.CanRedo(),
	}
}

// Clone copies the state list; mementos themselves are immutable and shared.
func (h *CartHistory) Clone() *CartHistory {
	states := make([]CartMemento, len(h.states))
	copy(states, h.states)
	return &CartHistory{states: states, cursor: h.cursor, capacity: h.capacity}
}

type mementoJSON struct {
	Items   []CartItem `json:"items"`
	TakenAt time.Time  `json:"taken_at"`
}

type historyJSON struct {
	States   []mementoJSON `json:"states"`
	Cursor   int           `json:"cursor"`
	Capacity int           `json:"capacity"`
}

func (h *CartHistory) MarshalJSON() ([]byte, error) {
	out := historyJSON{Cursor: h.cursor, Capacity: h.capacity, States: make([]mementoJSON, len(h.states))}
	for i, m := range h.states {
		out.States[i] = mementoJSON{Items: m.items, TakenAt: m.takenAt}
	}
	return json.Marshal(out)
}

func (h *CartHistory) UnmarshalJSON(data []byte) error {
	var in historyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Capacity <= 0 {
		in.Capacity = DefaultHistoryCapacity
	}
	h.capacity = in.Capacity
	h.states = make([]CartMemento, len(in.States))
	for i, m := range in.States {
		h.states[i] = NewCartMemento(m.Items, m.TakenAt)
	}
	h.cursor = in.Cursor
	if h.cursor >= len(h.states) {
		h.cursor = len(h.states) - 1
	}
	return nil
}
