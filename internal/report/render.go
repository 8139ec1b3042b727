package report

import (
	"bufio"
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"

	"mazeq/internal/engine"
	"mazeq/internal/maze"
)

var arrows = [engine.NumActions]string{
	engine.ActionLeft:  "<",
	engine.ActionRight: ">",
	engine.ActionUp:    "^",
	engine.ActionDown:  "v",
}

// RenderMaze draws the maze one row per line, highest Y first so "up"
// points up on screen. Open cells show the greedy action from q when q is
// given; cells on path are highlighted. colors toggles ANSI escapes.
func RenderMaze(w io.Writer, m *maze.Maze, q *engine.QTable, path []engine.State, colors bool) error {
	au := aurora.NewAurora(colors)
	onPath := make(map[engine.State]bool, len(path))
	for _, s := range path {
		onPath[s] = true
	}
	bw := bufio.NewWriter(w)
	for row := m.Rows() - 1; row >= 0; row-- {
		for col := 0; col < m.Cols(); col++ {
			s := engine.State{X: col, Y: row}
			var cell aurora.Value
			switch kind := m.Cell(row, col); kind {
			case maze.Wall:
				cell = au.Gray(12, "#")
			case maze.Goal:
				cell = au.Bold(au.Green("G"))
			case maze.Start:
				cell = au.Bold(au.Yellow("S"))
			case maze.Open:
				glyph := "."
				if q != nil {
					glyph = arrows[q.MaxValueAction(s).Action]
				}
				if onPath[s] {
					cell = au.Cyan(glyph)
				} else {
					cell = au.Blue(glyph)
				}
			default:
				cell = au.Red("?")
			}
			if onPath[s] {
				cell = au.Bold(cell)
			}
			fmt.Fprint(bw, cell)
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// RenderValues prints max_a Q(s,a) per cell in the same orientation as
// RenderMaze, walls blanked. q must be compatible with m.
func RenderValues(w io.Writer, m *maze.Maze, q *engine.QTable, colors bool) error {
	au := aurora.NewAurora(colors)
	values := q.StateValues()
	bw := bufio.NewWriter(w)
	for row := m.Rows() - 1; row >= 0; row-- {
		for col := 0; col < m.Cols(); col++ {
			if m.Cell(row, col) == maze.Wall {
				fmt.Fprint(bw, au.Gray(12, fmt.Sprintf("%8s", "#")))
			} else if v := values[row][col]; v > 0 {
				fmt.Fprint(bw, au.Green(fmt.Sprintf("%8.3f", v)))
			} else {
				fmt.Fprint(bw, au.Blue(fmt.Sprintf("%8.3f", v)))
			}
			fmt.Fprint(bw, au.White("|"))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}
