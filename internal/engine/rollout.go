package engine

import "mazeq/internal/maze"

type RolloutOutcome string

const (
	RolloutGoal     RolloutOutcome = "goal"
	RolloutLoop     RolloutOutcome = "loop"
	RolloutTerminal RolloutOutcome = "terminal"
	RolloutMaxSteps RolloutOutcome = "max_steps"
)

// RolloutResult is the trajectory of a greedy replay. Path starts at the
// start state and ends at the state the rollout halted in.
type RolloutResult struct {
	Path    []State
	Actions []Action
	Outcome RolloutOutcome
	Steps   int
	Reward  float64
}

// landing is where the agent ends up after moving from s towards trans:
// trans itself unless it is off the grid.
func landing(m *maze.Maze, s, trans State) State {
	if !m.InBounds(trans.Y, trans.X) {
		return s
	}
	return trans
}

// GreedyRollout follows argmax Q from start with no exploration. A revisited
// state halts it as a loop, so it never takes more than rows*cols+1 steps
// whatever maxSteps says.
func GreedyRollout(m *maze.Maze, q *QTable, start State, rewards Rewards, passThroughWalls bool, maxSteps int) RolloutResult {
	limit := m.Rows()*m.Cols() + 1
	if maxSteps <= 0 || maxSteps > limit {
		maxSteps = limit
	}
	res := RolloutResult{Path: []State{start}, Outcome: RolloutMaxSteps}
	visited := make(map[State]bool, limit)
	s := start
	for res.Steps < maxSteps {
		if visited[s] {
			res.Outcome = RolloutLoop
			return res
		}
		visited[s] = true

		a := q.MaxValueAction(s).Action
		next := NextState(s, a)
		sr := Step(m, next, rewards)
		trans := next
		if sr.InvalidNext && !passThroughWalls {
			trans = s
		}
		s = landing(m, s, trans)
		res.Steps++
		res.Reward += sr.Reward
		res.Actions = append(res.Actions, a)
		res.Path = append(res.Path, s)
		if sr.IsGoal {
			res.Outcome = RolloutGoal
			return res
		}
		if sr.Terminal {
			res.Outcome = RolloutTerminal
			return res
		}
	}
	return res
}
