package engine

import (
	"fmt"
	"math/rand"

	"mazeq/internal/maze"
)

// Hyperparams configure a single agent.
type Hyperparams struct {
	LearningRate float64
	Discount     float64
	// EpsilonDecay is delta for the linear and exponential schedules and the
	// decay constant for the step-exponential one.
	EpsilonDecay float64
	EpsilonStart float64
	EpsilonFinal float64
	Seed         int64
}

// Agent is an epsilon-greedy tabular learner bound to one maze size. It owns
// its table and its random source.
type Agent struct {
	rng         *rand.Rand
	table       *QTable
	rows        int
	cols        int
	state       State
	start       State
	action      Action
	epsilon     float64
	accumReward float64
	params      Hyperparams
}

func NewAgent(m *maze.Maze, params Hyperparams) *Agent {
	if params.EpsilonStart <= 0 || params.EpsilonStart > 1 {
		params.EpsilonStart = 1
	}
	params.EpsilonFinal = clamp(params.EpsilonFinal, 0, params.EpsilonStart)
	// maze.New never yields zero dimensions, so the table cannot fail here.
	table, _ := NewQTable(m.Cols(), m.Rows(), NumActions)
	start := StartState(m)
	return &Agent{
		rng:     rand.New(rand.NewSource(params.Seed)),
		table:   table,
		rows:    m.Rows(),
		cols:    m.Cols(),
		state:   start,
		start:   start,
		action:  ActionNone,
		epsilon: params.EpsilonStart,
		params:  params,
	}
}

func (a *Agent) Table() *QTable             { return a.table }
func (a *Agent) State() State               { return a.state }
func (a *Agent) Start() State               { return a.start }
func (a *Agent) Action() Action             { return a.action }
func (a *Agent) Epsilon() float64           { return a.epsilon }
func (a *Agent) Params() Hyperparams        { return a.params }
func (a *Agent) AccumulatedReward() float64 { return a.accumReward }

func (a *Agent) SetEpsilon(epsilon float64) {
	a.epsilon = clamp(epsilon, 0, 1)
}

// Reseed restarts the random source; equal seeds give equal trajectories.
func (a *Agent) Reseed(seed int64) {
	a.params.Seed = seed
	a.rng = rand.New(rand.NewSource(seed))
}

// Restart puts the agent back on its start cell. The table is kept.
func (a *Agent) Restart() {
	a.state = a.start
	a.action = ActionNone
	a.accumReward = 0
}

// SelectAction picks the greedy action when a uniform draw exceeds epsilon
// and a uniformly random one otherwise.
func (a *Agent) SelectAction() Action {
	if a.rng.Float64() > a.epsilon {
		a.action = a.table.MaxValueAction(a.state).Action
	} else {
		a.action = Action(a.rng.Intn(NumActions))
	}
	return a.action
}

// ForceAction sets the pending action without consulting the policy.
func (a *Agent) ForceAction(action Action) {
	a.action = action
}

// Update applies the TD(0) rule to the pending (state, action) pair and
// returns lr*(target - oldQ). next is only read for bootstrapping, leniently,
// so an off-grid next state contributes 0.
func (a *Agent) Update(next State, sr StepResult) (float64, error) {
	oldQ, err := a.table.Value(a.state, a.action)
	if err != nil {
		return 0, fmt.Errorf("td update: %w", err)
	}
	target := sr.Reward
	if !sr.Terminal {
		target += a.params.Discount * float64(a.table.MaxValueAction(next).Value)
	}
	lr := a.params.LearningRate
	old := float64(oldQ)
	td := lr * (target - old)
	if err := a.table.SetValue(a.state, a.action, float32((1-lr)*old+lr*target)); err != nil {
		return 0, fmt.Errorf("td update: %w", err)
	}
	return td, nil
}

// AddReward accumulates reward into the running episode total.
func (a *Agent) AddReward(r float64) {
	a.accumReward += r
}

// Advance moves the agent and clears the pending action.
func (a *Agent) Advance(next State) {
	a.state = next
	a.action = ActionNone
}

// DecayEpsilon applies one step of the given schedule. totalSteps is only
// read by DecayStepExponential.
func (a *Agent) DecayEpsilon(schedule DecaySchedule, totalSteps int) {
	switch schedule {
	case DecayLinear:
		a.epsilon = linearDecay(a.epsilon, a.params.EpsilonDecay)
	case DecayExponential:
		a.epsilon = exponentialDecay(a.epsilon, a.params.EpsilonDecay)
	case DecayStepExponential:
		a.epsilon = stepExponentialEpsilon(a.params.EpsilonStart, a.params.EpsilonFinal, a.params.EpsilonDecay, totalSteps)
	}
}

// ReplaceTable swaps in t after checking it fits the agent's maze. On
// mismatch the current table is kept.
func (a *Agent) ReplaceTable(t *QTable) error {
	if t == nil {
		return ErrInvalidDims
	}
	if !t.Compatible(a.rows, a.cols) {
		cols, rows, actions := t.Dims()
		return fmt.Errorf("table %dx%dx%d for maze %dx%d: %w", cols, rows, actions, a.cols, a.rows, ErrDimensionMismatch)
	}
	a.table = t
	return nil
}

func (a *Agent) SaveTable(path string) error {
	return SaveQTable(path, a.table)
}

// LoadTable reads a table from path and replaces the current one.
func (a *Agent) LoadTable(path string) error {
	t, err := LoadQTable(path)
	if err != nil {
		return err
	}
	return a.ReplaceTable(t)
}
