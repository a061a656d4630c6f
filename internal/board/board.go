// Package board holds the shared table: which item sits in which slot and
// which players have marked which slots.
package board

import (
	"fmt"
	"sync"
)

// Toggle is the outcome of a marker toggle.
type Toggle int

const (
	Ignored Toggle = iota
	Placed
	Removed
)

func (t Toggle) String() string {
	switch t {
	case Placed:
		return "placed"
	case Removed:
		return "removed"
	default:
		return "ignored"
	}
}

// Mark is a player's marker together with the item under it.
type Mark struct {
	Slot int
	Item int
}

// Observer is told about every table change. Callbacks run while the table
// is locked and must not call back into it.
type Observer interface {
	ItemPlaced(slot, item int)
	SlotCleared(slot, item int)
	MarkerPlaced(player, slot int)
	MarkerRemoved(player, slot int)
}

type nopObserver struct{}

func (nopObserver) ItemPlaced(int, int)    {}
func (nopObserver) SlotCleared(int, int)   {}
func (nopObserver) MarkerPlaced(int, int)  {}
func (nopObserver) MarkerRemoved(int, int) {}

const empty = -1

// Table is safe for concurrent use. The dealer closes the mutation gate while
// it replenishes, clears or validates; marker toggles are dropped meanwhile.
type Table struct {
	mu sync.Mutex

	slots      []int       // slot -> item, or empty
	itemSlot   map[int]int // item -> slot
	markers    [][]int     // player -> marked slots in placement order
	maxMarkers int

	mutable        bool
	countdownShown bool

	obs Observer
}

// NewTable returns an empty table with both gates unset.
func NewTable(slots, players, maxMarkers int, obs Observer) *Table {
	if obs == nil {
		obs = nopObserver{}
	}
	t := &Table{
		slots:      make([]int, slots),
		itemSlot:   make(map[int]int, slots),
		markers:    make([][]int, players),
		maxMarkers: maxMarkers,
		obs:        obs,
	}
	for i := range t.slots {
		t.slots[i] = empty
	}
	return t
}

// Size is the number of slots.
func (t *Table) Size() int {
	return len(t.slots)
}

// ItemAt returns the item in slot, if any.
func (t *Table) ItemAt(slot int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.validSlot(slot) || t.slots[slot] == empty {
		return 0, false
	}
	return t.slots[slot], true
}

// Place puts item into an empty slot.
func (t *Table) Place(item, slot int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.validSlot(slot) {
		return fmt.Errorf("slot %d out of range", slot)
	}
	if cur := t.slots[slot]; cur != empty {
		return fmt.Errorf("slot %d already holds item %d", slot, cur)
	}
	if at, ok := t.itemSlot[item]; ok {
		return fmt.Errorf("item %d already on slot %d", item, at)
	}
	t.slots[slot] = item
	t.itemSlot[item] = slot
	t.obs.ItemPlaced(slot, item)
	return nil
}

// Clear empties slot and removes every player's marker from it. It returns
// the item that was there.
func (t *Table) Clear(slot int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.validSlot(slot) {
		return 0, false
	}
	for p := range t.markers {
		t.removeMarkerLocked(p, slot)
	}
	item := t.slots[slot]
	if item == empty {
		return 0, false
	}
	t.slots[slot] = empty
	delete(t.itemSlot, item)
	t.obs.SlotCleared(slot, item)
	return item, true
}

// ToggleMarker flips the player's marker on slot. It is ignored unless the
// table is mutable, the countdown is showing and the slot holds an item; a
// new marker is also ignored once the player holds the maximum.
func (t *Table) ToggleMarker(player, slot int) Toggle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.mutable || !t.countdownShown || !t.validPlayer(player) || !t.validSlot(slot) || t.slots[slot] == empty {
		return Ignored
	}
	if t.removeMarkerLocked(player, slot) {
		return Removed
	}
	if len(t.markers[player]) >= t.maxMarkers {
		return Ignored
	}
	t.markers[player] = append(t.markers[player], slot)
	t.obs.MarkerPlaced(player, slot)
	return Placed
}

// RemoveMarker drops the player's marker on slot regardless of the gates.
func (t *Table) RemoveMarker(player, slot int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.validPlayer(player) {
		return false
	}
	return t.removeMarkerLocked(player, slot)
}

func (t *Table) removeMarkerLocked(player, slot int) bool {
	marks := t.markers[player]
	for i, s := range marks {
		if s == slot {
			t.markers[player] = append(marks[:i], marks[i+1:]...)
			t.obs.MarkerRemoved(player, slot)
			return true
		}
	}
	return false
}

// HasMarker reports whether player has marked slot.
func (t *Table) HasMarker(player, slot int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.validPlayer(player) {
		return false
	}
	for _, s := range t.markers[player] {
		if s == slot {
			return true
		}
	}
	return false
}

// MarkersOf returns the player's marked slots in placement order.
func (t *Table) MarkersOf(player int) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.validPlayer(player) {
		return nil
	}
	return append([]int(nil), t.markers[player]...)
}

// Selection returns the player's markers with the items under them, read
// in one step.
func (t *Table) Selection(player int) []Mark {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.validPlayer(player) {
		return nil
	}
	out := make([]Mark, 0, len(t.markers[player]))
	for _, s := range t.markers[player] {
		out = append(out, Mark{Slot: s, Item: t.slots[s]})
	}
	return out
}

// Items returns the items on the table in slot order.
func (t *Table) Items() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.itemSlot))
	for _, item := range t.slots {
		if item != empty {
			out = append(out, item)
		}
	}
	return out
}

// CountItems is the number of occupied slots.
func (t *Table) CountItems() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.itemSlot)
}

// EmptySlots returns the unoccupied slots in ascending order.
func (t *Table) EmptySlots() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int
	for s, item := range t.slots {
		if item == empty {
			out = append(out, s)
		}
	}
	return out
}

// SetMutable opens or closes the mutation gate. Once it returns false no
// toggle is in flight.
func (t *Table) SetMutable(v bool) {
	t.mu.Lock()
	t.mutable = v
	t.mu.Unlock()
}

// Mutable reports whether players may currently toggle markers.
func (t *Table) Mutable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mutable
}

// SetCountdownShown records whether the current round's timer is on display.
func (t *Table) SetCountdownShown(v bool) {
	t.mu.Lock()
	t.countdownShown = v
	t.mu.Unlock()
}

// CountdownShown reports whether the current round's timer has been shown.
func (t *Table) CountdownShown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countdownShown
}

func (t *Table) validSlot(slot int) bool {
	return slot >= 0 && slot < len(t.slots)
}

func (t *Table) validPlayer(player int) bool {
	return player >= 0 && player < len(t.markers)
}
