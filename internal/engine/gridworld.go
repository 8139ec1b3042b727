package engine

import (
	"fmt"
	"strings"

	"mazeq/internal/maze"
)

// StepResult is the outcome of moving into a candidate state.
type StepResult struct {
	Reward      float64
	Terminal    bool
	IsGoal      bool
	InvalidNext bool
}

// RewardTable holds the base reward for entering each cell kind.
type RewardTable struct {
	Open  float64
	Wall  float64
	Goal  float64
	Start float64
}

var DefaultRewardTable = RewardTable{
	Open:  -0.01,
	Wall:  -0.5,
	Goal:  1.0,
	Start: -0.1,
}

// RewardScaling selects how the base table is adjusted to the maze size.
type RewardScaling int

const (
	// Scaled multiplies the goal reward by the number of open cells and the
	// wall penalty by the number of wall cells, so both grow with the maze.
	Scaled RewardScaling = iota
	// Unscaled uses the base table as is.
	Unscaled
)

func (r RewardScaling) String() string {
	switch r {
	case Scaled:
		return "scaled"
	case Unscaled:
		return "unscaled"
	default:
		return fmt.Sprintf("RewardScaling(%d)", int(r))
	}
}

func ParseRewardScaling(s string) (RewardScaling, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scaled":
		return Scaled, nil
	case "unscaled":
		return Unscaled, nil
	default:
		return 0, fmt.Errorf("unknown reward scaling %q (want scaled or unscaled)", s)
	}
}

// CellCounts caches the per-kind totals the scaled rewards depend on.
type CellCounts struct {
	Open  int
	Wall  int
	Cells int
}

func CountCells(m *maze.Maze) CellCounts {
	return CellCounts{
		Open:  m.Count(maze.Open),
		Wall:  m.Count(maze.Wall),
		Cells: m.Rows() * m.Cols(),
	}
}

// Rewards resolves the reward for each cell kind under one scaling strategy.
type Rewards struct {
	Base    RewardTable
	Scaling RewardScaling
	Counts  CellCounts
}

func NewRewards(m *maze.Maze, scaling RewardScaling, base RewardTable) Rewards {
	return Rewards{Base: base, Scaling: scaling, Counts: CountCells(m)}
}

func (r Rewards) Goal() float64 {
	if r.Scaling == Scaled {
		return r.Base.Goal * float64(max(1, r.Counts.Open))
	}
	return r.Base.Goal
}

func (r Rewards) Wall() float64 {
	if r.Scaling == Scaled {
		return r.Base.Wall * float64(max(1, r.Counts.Wall))
	}
	return r.Base.Wall
}

func (r Rewards) For(kind maze.CellKind) float64 {
	switch kind {
	case maze.Goal:
		return r.Goal()
	case maze.Wall:
		return r.Wall()
	case maze.Start:
		return r.Base.Start
	default:
		return r.Base.Open
	}
}

// Step evaluates entering next. Off-grid targets and walls are invalid moves;
// a goal ends the episode.
func Step(m *maze.Maze, next State, rewards Rewards) StepResult {
	if !m.InBounds(next.Y, next.X) {
		return StepResult{Reward: rewards.Wall(), InvalidNext: true}
	}
	kind := m.Cell(next.Y, next.X)
	switch kind {
	case maze.Goal:
		return StepResult{Reward: rewards.Goal(), Terminal: true, IsGoal: true}
	case maze.Wall:
		return StepResult{Reward: rewards.Wall(), InvalidNext: true}
	default:
		return StepResult{Reward: rewards.For(kind)}
	}
}

// StartState returns the first start cell as a state, (0,0) when missing.
func StartState(m *maze.Maze) State {
	row, col := m.FirstMatching(maze.Start)
	return State{X: col, Y: row}
}

// GoalState returns the first goal cell and whether the maze has one.
func GoalState(m *maze.Maze) (State, bool) {
	row, col, ok := m.FirstMatchingOK(maze.Goal)
	return State{X: col, Y: row}, ok
}
