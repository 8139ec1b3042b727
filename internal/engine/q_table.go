package engine

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange        = errors.New("state or action out of table range")
	ErrInvalidDims       = errors.New("q-table dimensions must be non-zero")
	ErrDimensionMismatch = errors.New("q-table dimensions do not match maze")
)

// ValAction pairs the best value of a state with the action that reaches it.
type ValAction struct {
	Value  float32
	Action Action
}

// QTable is a dense cols x rows x actions value store, laid out as
// actions*((y*cols)+x)+a.
type QTable struct {
	cols    int
	rows    int
	actions int
	vals    []float32
}

func NewQTable(cols, rows, actions int) (*QTable, error) {
	if cols <= 0 || rows <= 0 || actions <= 0 {
		return nil, fmt.Errorf("new q-table %dx%dx%d: %w", cols, rows, actions, ErrInvalidDims)
	}
	return &QTable{cols: cols, rows: rows, actions: actions, vals: make([]float32, cols*rows*actions)}, nil
}

func (q *QTable) Dims() (cols, rows, actions int) {
	return q.cols, q.rows, q.actions
}

func (q *QTable) Len() int {
	return len(q.vals)
}

func (q *QTable) index(s State, a Action) (int, bool) {
	if s.X < 0 || s.X >= q.cols || s.Y < 0 || s.Y >= q.rows {
		return 0, false
	}
	if a < 0 || int(a) >= q.actions {
		return 0, false
	}
	return q.actions*(s.Y*q.cols+s.X) + int(a), true
}

// Value returns Q(s, a), or ErrOutOfRange.
func (q *QTable) Value(s State, a Action) (float32, error) {
	idx, ok := q.index(s, a)
	if !ok {
		return 0, fmt.Errorf("value %v %v: %w", s, a, ErrOutOfRange)
	}
	return q.vals[idx], nil
}

// SetValue stores Q(s, a), or returns ErrOutOfRange and leaves the table as is.
func (q *QTable) SetValue(s State, a Action, v float32) error {
	idx, ok := q.index(s, a)
	if !ok {
		return fmt.Errorf("set value %v %v: %w", s, a, ErrOutOfRange)
	}
	q.vals[idx] = v
	return nil
}

// Get is the lenient read: 0 for anything out of range. Bootstrapping from
// an off-grid state uses it when walls are passable.
func (q *QTable) Get(s State, a Action) float32 {
	idx, ok := q.index(s, a)
	if !ok {
		return 0
	}
	return q.vals[idx]
}

// Set is the lenient write: out of range is a no-op.
func (q *QTable) Set(s State, a Action, v float32) {
	if idx, ok := q.index(s, a); ok {
		q.vals[idx] = v
	}
}

// MaxValueAction scans actions in order and keeps the first strict maximum,
// so ties go to the lowest action.
func (q *QTable) MaxValueAction(s State) ValAction {
	best := ValAction{Value: q.Get(s, 0), Action: 0}
	for a := Action(1); int(a) < q.actions; a++ {
		if v := q.Get(s, a); v > best.Value {
			best = ValAction{Value: v, Action: a}
		}
	}
	return best
}

// Compatible reports whether the table can drive an agent on a rows x cols maze.
func (q *QTable) Compatible(rows, cols int) bool {
	return q.rows == rows && q.cols == cols && q.actions == NumActions
}

// StateValues returns max_a Q(s, a) per cell, indexed [row][col].
func (q *QTable) StateValues() [][]float64 {
	values := make([][]float64, q.rows)
	for y := 0; y < q.rows; y++ {
		values[y] = make([]float64, q.cols)
		for x := 0; x < q.cols; x++ {
			values[y][x] = float64(q.MaxValueAction(State{X: x, Y: y}).Value)
		}
	}
	return values
}

func (q *QTable) Clone() *QTable {
	vals := make([]float32, len(q.vals))
	copy(vals, q.vals)
	return &QTable{cols: q.cols, rows: q.rows, actions: q.actions, vals: vals}
}
