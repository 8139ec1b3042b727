package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQTableRejectsZeroDims(t *testing.T) {
	for _, dims := range [][3]int{{0, 3, 4}, {3, 0, 4}, {3, 3, 0}, {-1, 2, 4}} {
		_, err := NewQTable(dims[0], dims[1], dims[2])
		assert.ErrorIs(t, err, ErrInvalidDims, "dims %v", dims)
	}
}

func TestQTableLayout(t *testing.T) {
	q, err := NewQTable(3, 4, NumActions)
	require.NoError(t, err)
	assert.Equal(t, 3*4*NumActions, q.Len())

	require.NoError(t, q.SetValue(State{X: 1, Y: 2}, ActionUp, 0.75))
	assert.Equal(t, float32(0.75), q.vals[NumActions*((2*3)+1)+int(ActionUp)])

	v, err := q.Value(State{X: 1, Y: 2}, ActionUp)
	require.NoError(t, err)
	assert.Equal(t, float32(0.75), v)
}

func TestQTableOutOfRange(t *testing.T) {
	q, err := NewQTable(2, 2, NumActions)
	require.NoError(t, err)

	tests := []struct {
		name string
		s    State
		a    Action
	}{
		{"negative x", State{X: -1, Y: 0}, ActionLeft},
		{"x past cols", State{X: 2, Y: 0}, ActionLeft},
		{"y past rows", State{X: 0, Y: 2}, ActionLeft},
		{"action none", State{X: 0, Y: 0}, ActionNone},
		{"action past count", State{X: 0, Y: 0}, Action(NumActions)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Value(tt.s, tt.a)
			assert.ErrorIs(t, err, ErrOutOfRange)
			assert.ErrorIs(t, q.SetValue(tt.s, tt.a, 1), ErrOutOfRange)
			assert.Zero(t, q.Get(tt.s, tt.a))
			q.Set(tt.s, tt.a, 1)
		})
	}
	for _, v := range q.vals {
		assert.Zero(t, v, "out of range writes must not touch the table")
	}
}

func TestMaxValueAction(t *testing.T) {
	q, err := NewQTable(2, 2, NumActions)
	require.NoError(t, err)
	s := State{X: 1, Y: 1}

	assert.Equal(t, ValAction{Value: 0, Action: ActionLeft}, q.MaxValueAction(s), "ties go to the first action")

	q.Set(s, ActionRight, 0.5)
	q.Set(s, ActionUp, 0.5)
	q.Set(s, ActionDown, 0.2)
	assert.Equal(t, ValAction{Value: 0.5, Action: ActionRight}, q.MaxValueAction(s))

	for a := Action(0); a < NumActions; a++ {
		q.Set(s, a, -1)
	}
	q.Set(s, ActionDown, -0.5)
	assert.Equal(t, ValAction{Value: -0.5, Action: ActionDown}, q.MaxValueAction(s))

	assert.Equal(t, ValAction{Value: 0, Action: ActionLeft}, q.MaxValueAction(State{X: 5, Y: -3}))
}

func TestQTableStateValuesAndClone(t *testing.T) {
	q, err := NewQTable(3, 2, NumActions)
	require.NoError(t, err)
	q.Set(State{X: 2, Y: 1}, ActionDown, 4)

	values := q.StateValues()
	require.Len(t, values, 2)
	require.Len(t, values[0], 3)
	assert.Equal(t, 4.0, values[1][2])

	clone := q.Clone()
	clone.Set(State{X: 2, Y: 1}, ActionDown, 1)
	assert.Equal(t, float32(4), q.Get(State{X: 2, Y: 1}, ActionDown))
	assert.True(t, q.Compatible(2, 3))
	assert.False(t, q.Compatible(3, 2))
}
