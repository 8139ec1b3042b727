/*
Package maze holds the static grid the agent is trained on.

A Maze is a dense row-major grid of cell kinds. The byte value of each kind is
the one used by the on-disk formats, so grids read from a raw or npy file map
straight onto CellKind.

Cell and SetCell do not bounds check; callers use InBounds first.
*/
package maze

import (
	"errors"
	"fmt"
	"strings"
)

// CellKind is the content of a single maze cell.
type CellKind uint8

const (
	Open  CellKind = 0
	Wall  CellKind = 1
	Goal  CellKind = 2
	Start CellKind = 9
)

var (
	ErrEmptyMaze = errors.New("maze has zero rows or cols")
	ErrNoStart   = errors.New("maze has no start cell")
	ErrCellCount = errors.New("cell count does not match maze dimensions")
)

func (k CellKind) String() string {
	switch k {
	case Open:
		return "open"
	case Wall:
		return "wall"
	case Goal:
		return "goal"
	case Start:
		return "start"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Maze is a rectangular grid of cell kinds.
type Maze struct {
	rows  int
	cols  int
	cells []CellKind
}

// New returns an all-open maze of the given size.
func New(rows, cols int) (*Maze, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("new maze %dx%d: %w", rows, cols, ErrEmptyMaze)
	}
	return &Maze{rows: rows, cols: cols, cells: make([]CellKind, rows*cols)}, nil
}

// FromCells builds a maze over a copy of cells, which must hold rows*cols
// entries in row-major order.
func FromCells(rows, cols int, cells []CellKind) (*Maze, error) {
	m, err := New(rows, cols)
	if err != nil {
		return nil, err
	}
	if len(cells) != rows*cols {
		return nil, fmt.Errorf("maze %dx%d with %d cells: %w", rows, cols, len(cells), ErrCellCount)
	}
	copy(m.cells, cells)
	return m, nil
}

// Parse builds a maze from text rows, one rune per cell:
// '#' wall, '.' or ' ' open, 'G' goal, 'S' start.
func Parse(lines ...string) (*Maze, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("parse maze: %w", ErrEmptyMaze)
	}
	cols := len(lines[0])
	m, err := New(len(lines), cols)
	if err != nil {
		return nil, err
	}
	for row, line := range lines {
		if len(line) != cols {
			return nil, fmt.Errorf("parse maze: row %d has %d cells, want %d", row, len(line), cols)
		}
		for col, ch := range line {
			var kind CellKind
			switch ch {
			case '#':
				kind = Wall
			case '.', ' ':
				kind = Open
			case 'G':
				kind = Goal
			case 'S':
				kind = Start
			default:
				return nil, fmt.Errorf("parse maze: unknown cell %q at row %d col %d", ch, row, col)
			}
			m.SetCell(row, col, kind)
		}
	}
	return m, nil
}

func (m *Maze) Rows() int { return m.rows }
func (m *Maze) Cols() int { return m.cols }

// Cells returns the backing row-major slice. Writes through it mutate the maze.
func (m *Maze) Cells() []CellKind { return m.cells }

func (m *Maze) InBounds(row, col int) bool {
	return row >= 0 && row < m.rows && col >= 0 && col < m.cols
}

func (m *Maze) Cell(row, col int) CellKind {
	return m.cells[row*m.cols+col]
}

func (m *Maze) SetCell(row, col int, kind CellKind) {
	m.cells[row*m.cols+col] = kind
}

// FirstMatching scans row-major and returns the first cell of the given kind,
// or (0, 0) when there is none.
func (m *Maze) FirstMatching(kind CellKind) (row, col int) {
	row, col, _ = m.FirstMatchingOK(kind)
	return row, col
}

// FirstMatchingOK is FirstMatching that also reports whether a match exists.
func (m *Maze) FirstMatchingOK(kind CellKind) (row, col int, ok bool) {
	for i, k := range m.cells {
		if k == kind {
			return i / m.cols, i % m.cols, true
		}
	}
	return 0, 0, false
}

func (m *Maze) Count(kind CellKind) int {
	count := 0
	for _, k := range m.cells {
		if k == kind {
			count++
		}
	}
	return count
}

// Validate reports configuration errors that make a maze unusable for
// training. A maze without a goal is allowed.
func (m *Maze) Validate() error {
	if m == nil || m.rows <= 0 || m.cols <= 0 || len(m.cells) != m.rows*m.cols {
		return ErrEmptyMaze
	}
	if _, _, ok := m.FirstMatchingOK(Start); !ok {
		return ErrNoStart
	}
	return nil
}

// Clone returns a deep copy.
func (m *Maze) Clone() *Maze {
	cells := make([]CellKind, len(m.cells))
	copy(cells, m.cells)
	return &Maze{rows: m.rows, cols: m.cols, cells: cells}
}

// String renders the maze with the same runes Parse accepts.
func (m *Maze) String() string {
	var b strings.Builder
	for row := 0; row < m.rows; row++ {
		for col := 0; col < m.cols; col++ {
			switch m.Cell(row, col) {
			case Wall:
				b.WriteByte('#')
			case Goal:
				b.WriteByte('G')
			case Start:
				b.WriteByte('S')
			case Open:
				b.WriteByte('.')
			default:
				b.WriteByte('?')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
