package engine

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// State is a grid coordinate: X indexes columns, Y indexes rows.
type State struct {
	X int
	Y int
}

func (s State) String() string {
	return fmt.Sprintf("(%d,%d)", s.X, s.Y)
}

// Action is one of the four moves. ActionNone marks "not chosen yet" and
// never indexes a table.
type Action int8

const (
	ActionLeft Action = iota
	ActionRight
	ActionUp
	ActionDown
)

const (
	NumActions        = 4
	ActionNone Action = -1
)

var actionDeltas = [NumActions]State{
	ActionLeft:  {X: -1, Y: 0},
	ActionRight: {X: 1, Y: 0},
	ActionUp:    {X: 0, Y: 1},
	ActionDown:  {X: 0, Y: -1},
}

var actionNames = [NumActions]string{"left", "right", "up", "down"}

func (a Action) Valid() bool {
	return a >= 0 && a < NumActions
}

func (a Action) String() string {
	if !a.Valid() {
		return "none"
	}
	return actionNames[a]
}

// Delta returns the coordinate change of a; the zero delta for ActionNone.
func (a Action) Delta() State {
	if !a.Valid() {
		return State{}
	}
	return actionDeltas[a]
}

// NextState applies a to s without any bounds check.
func NextState(s State, a Action) State {
	d := a.Delta()
	return State{X: s.X + d.X, Y: s.Y + d.Y}
}

func clamp[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func abs[T constraints.Signed | constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
