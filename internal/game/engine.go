package game

import (
	"time"

	"example.com/tripleclaim/internal/board"
)

// Board is the table the dealer and players share.
type Board interface {
	Size() int
	ItemAt(slot int) (int, bool)
	Place(item, slot int) error
	Clear(slot int) (int, bool)
	ToggleMarker(player, slot int) board.Toggle
	RemoveMarker(player, slot int) bool
	HasMarker(player, slot int) bool
	MarkersOf(player int) []int
	Selection(player int) []board.Mark
	Items() []int
	CountItems() int
	EmptySlots() []int

	SetMutable(bool)
	Mutable() bool
	SetCountdownShown(bool)
	CountdownShown() bool
}

// Matcher decides whether items form a valid match.
type Matcher interface {
	IsMatch(items []int) bool
	HasAnyMatch(items []int, minCount int) bool
}

// Display receives game progress. Calls must not block.
type Display interface {
	Countdown(remaining time.Duration, warn bool)
	Score(player, score int)
	Freeze(player int, remaining time.Duration)
	Winners(players []int)
}

type nopDisplay struct{}

func (nopDisplay) Countdown(time.Duration, bool) {}
func (nopDisplay) Score(int, int)                {}
func (nopDisplay) Freeze(int, time.Duration)     {}
func (nopDisplay) Winners([]int)                 {}

var _ Board = (*board.Table)(nil)
