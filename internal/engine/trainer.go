package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mazeq/internal/maze"
)

const (
	StatusRunning         = "running"
	StatusEpisodeComplete = "episode_complete"
	StatusConverged       = "converged"
	StatusDone            = "done"
	StatusCancelled       = "cancelled"
	StatusFailed          = "failed"
)

const (
	DefaultEpisodes      = 200
	DefaultMaxSteps      = 856
	DefaultSeed          = 67
	DefaultLearningRate  = 0.6
	DefaultDiscount      = 0.99
	DefaultEpsilonDecay  = 37001
	DefaultEpsilonStart  = 1.0
	DefaultEpsilonFinal  = 0.1
	DefaultSuccessWindow = 20
	DefaultLogEvery      = 10
)

// Per-episode delta and factor for the linear and exponential schedules.
const (
	DefaultLinearDecay      = 0.005
	DefaultExponentialDecay = 0.99
)

type Config struct {
	Episodes     int
	MaxSteps     int
	Seed         int64
	LearningRate float64
	Discount     float64
	// EpsilonDecay is read per Decay schedule. 0 picks DefaultDecayFor(Decay).
	EpsilonDecay float64
	EpsilonStart float64
	EpsilonFinal float64
	Decay        DecaySchedule
	Scaling      RewardScaling
	Rewards      RewardTable
	// RewardShaping adds the distance-to-goal potential term on valid moves.
	RewardShaping bool
	// PassThroughWalls bootstraps from the raw candidate state even when the
	// move was invalid, letting the agent walk through wall cells. The grid
	// edge still holds the agent in place.
	PassThroughWalls bool
	SuccessWindow    int
	// SuccessThreshold stops training early once the rolling success rate
	// (percent) reaches it over a full window. 0 disables.
	SuccessThreshold float64
	LogEvery         int
	// StepSnapshots emits a StatusRunning snapshot after every step.
	StepSnapshots bool
	Logger        logrus.FieldLogger `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Episodes:      DefaultEpisodes,
		MaxSteps:      DefaultMaxSteps,
		Seed:          DefaultSeed,
		LearningRate:  DefaultLearningRate,
		Discount:      DefaultDiscount,
		EpsilonStart:  DefaultEpsilonStart,
		EpsilonFinal:  DefaultEpsilonFinal,
		Decay:         DecayStepExponential,
		Scaling:       Scaled,
		Rewards:       DefaultRewardTable,
		SuccessWindow: DefaultSuccessWindow,
		LogEvery:      DefaultLogEvery,
	}
}

// withDefaults fills unset fields. Out-of-range values are left for Validate.
func (c Config) withDefaults() Config {
	if c.Episodes == 0 {
		c.Episodes = DefaultEpisodes
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.LearningRate == 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.EpsilonDecay == 0 {
		c.EpsilonDecay = DefaultDecayFor(c.Decay)
	}
	if c.EpsilonStart == 0 {
		c.EpsilonStart = DefaultEpsilonStart
	}
	if c.Rewards == (RewardTable{}) {
		c.Rewards = DefaultRewardTable
	}
	if c.SuccessWindow == 0 {
		c.SuccessWindow = DefaultSuccessWindow
	}
	if c.LogEvery <= 0 {
		c.LogEvery = DefaultLogEvery
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// DefaultDecayFor returns the EpsilonDecay used when none is configured.
func DefaultDecayFor(d DecaySchedule) float64 {
	switch d {
	case DecayLinear:
		return DefaultLinearDecay
	case DecayExponential:
		return DefaultExponentialDecay
	default:
		return DefaultEpsilonDecay
	}
}

func (c Config) Validate() error {
	switch {
	case c.Episodes < 0:
		return fmt.Errorf("episodes must be positive (got %d)", c.Episodes)
	case c.MaxSteps < 0:
		return fmt.Errorf("max steps must be positive (got %d)", c.MaxSteps)
	case c.LearningRate < 0 || c.LearningRate > 1:
		return fmt.Errorf("learning rate must be between 0 and 1 (got %g)", c.LearningRate)
	case c.Discount < 0 || c.Discount > 1:
		return fmt.Errorf("discount must be between 0 and 1 (got %g)", c.Discount)
	case c.EpsilonDecay < 0:
		return fmt.Errorf("epsilon decay must not be negative (got %g)", c.EpsilonDecay)
	case c.Decay == DecayLinear && c.EpsilonDecay > 1:
		return fmt.Errorf("linear epsilon decay is a per-episode delta and must not exceed 1 (got %g)", c.EpsilonDecay)
	case c.Decay == DecayExponential && c.EpsilonDecay > 1:
		return fmt.Errorf("exponential epsilon decay is a per-episode factor and must not exceed 1 (got %g)", c.EpsilonDecay)
	case c.EpsilonStart < 0 || c.EpsilonStart > 1:
		return fmt.Errorf("epsilon start must be between 0 and 1 (got %g)", c.EpsilonStart)
	case c.EpsilonFinal < 0 || c.EpsilonFinal > c.EpsilonStart:
		return fmt.Errorf("epsilon final must be between 0 and epsilon start (got %g)", c.EpsilonFinal)
	case c.SuccessWindow < 0:
		return fmt.Errorf("success window must be positive (got %d)", c.SuccessWindow)
	case c.SuccessThreshold < 0 || c.SuccessThreshold > 100:
		return fmt.Errorf("success threshold must be a percentage (got %g)", c.SuccessThreshold)
	}
	switch c.Decay {
	case DecayStepExponential, DecayLinear, DecayExponential:
	default:
		return fmt.Errorf("unknown decay schedule %v", c.Decay)
	}
	switch c.Scaling {
	case Scaled, Unscaled:
	default:
		return fmt.Errorf("unknown reward scaling %v", c.Scaling)
	}
	return nil
}

type Snapshot struct {
	Status            string
	Episode           int
	EpisodeSteps      int
	EpisodeReward     float64
	Reward            float64
	Position          State
	Epsilon           float64
	SuccessCount      int
	EpisodesCompleted int
	TotalSteps        int
	// Metrics is set on StatusEpisodeComplete.
	Metrics *EpisodeMetrics
	Err     error
}

// Trainer runs one training session. All per-run counters live here, so
// independent trainers never share state.
type Trainer struct {
	cfg        Config
	maze       *maze.Maze
	agent      *Agent
	rewards    Rewards
	goal       State
	hasGoal    bool
	runID      uuid.UUID
	log        logrus.FieldLogger
	window     *successWindow
	metrics    []EpisodeMetrics
	goals      int
	totalSteps int
}

func NewTrainer(m *maze.Maze, cfg Config) (*Trainer, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("new trainer: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new trainer: %w", err)
	}
	runID := uuid.New()
	log := cfg.Logger.WithFields(logrus.Fields{
		"run_id": runID.String(),
		"rows":   m.Rows(),
		"cols":   m.Cols(),
	})
	goal, hasGoal := GoalState(m)
	if !hasGoal {
		log.Warn("maze has no goal cell; episodes can only end on the step budget")
	}
	agent := NewAgent(m, Hyperparams{
		LearningRate: cfg.LearningRate,
		Discount:     cfg.Discount,
		EpsilonDecay: cfg.EpsilonDecay,
		EpsilonStart: cfg.EpsilonStart,
		EpsilonFinal: cfg.EpsilonFinal,
		Seed:         cfg.Seed,
	})
	return &Trainer{
		cfg:     cfg,
		maze:    m,
		agent:   agent,
		rewards: NewRewards(m, cfg.Scaling, cfg.Rewards),
		goal:    goal,
		hasGoal: hasGoal,
		runID:   runID,
		log:     log,
		window:  newSuccessWindow(cfg.SuccessWindow),
	}, nil
}

func (t *Trainer) Agent() *Agent    { return t.agent }
func (t *Trainer) Maze() *maze.Maze { return t.maze }
func (t *Trainer) Config() Config   { return t.cfg }
func (t *Trainer) Rewards() Rewards { return t.rewards }
func (t *Trainer) RunID() uuid.UUID { return t.runID }
func (t *Trainer) TotalSteps() int  { return t.totalSteps }

// Metrics returns a copy of the per-episode history so far.
func (t *Trainer) Metrics() []EpisodeMetrics {
	out := make([]EpisodeMetrics, len(t.metrics))
	copy(out, t.metrics)
	return out
}

// Run trains in a background goroutine and streams snapshots until the
// episodes are exhausted, the success threshold is met, or ctx is done. The
// channel is closed afterwards; completed episodes stay in Metrics either way.
func (t *Trainer) Run(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		t.log.WithFields(logrus.Fields{
			"episodes":  t.cfg.Episodes,
			"max_steps": t.cfg.MaxSteps,
			"lr":        t.cfg.LearningRate,
			"discount":  t.cfg.Discount,
			"decay":     t.cfg.Decay.String(),
			"scaling":   t.cfg.Scaling.String(),
			"shaping":   t.cfg.RewardShaping,
			"start":     t.agent.Start().String(),
		}).Info("training started")
		for episode := 0; episode < t.cfg.Episodes; episode++ {
			select {
			case <-ctx.Done():
				t.log.WithField("episode", episode).Warn("training cancelled")
				out <- t.snapshot(StatusCancelled, episode, 0, 0, 0)
				return
			default:
			}
			metrics, err := t.runEpisode(ctx, episode, out)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				t.log.WithField("episode", episode).Warn("training cancelled mid-episode")
				out <- t.snapshot(StatusCancelled, episode, 0, 0, 0)
				return
			}
			if err != nil {
				t.log.WithError(err).Error("training step failed")
				snap := t.snapshot(StatusFailed, episode, 0, 0, 0)
				snap.Err = err
				out <- snap
				return
			}
			snap := t.snapshot(StatusEpisodeComplete, episode, metrics.Steps, metrics.Reward, 0)
			snap.Metrics = &metrics
			out <- snap
			if t.cfg.SuccessThreshold > 0 && t.window.full() && t.window.rate() >= t.cfg.SuccessThreshold {
				t.log.WithFields(logrus.Fields{
					"episode":      episode,
					"success_rate": t.window.rate(),
				}).Info("policy converged")
				out <- t.snapshot(StatusConverged, episode, 0, 0, 0)
				return
			}
		}
		t.log.WithFields(logrus.Fields{
			"goals":       t.goals,
			"total_steps": t.totalSteps,
		}).Info("training finished")
		out <- t.snapshot(StatusDone, t.cfg.Episodes, 0, 0, 0)
	}()
	return out
}

func (t *Trainer) runEpisode(ctx context.Context, episode int, out chan<- Snapshot) (EpisodeMetrics, error) {
	t.agent.Restart()
	epsilon := t.agent.Epsilon()
	steps := 0
	loss := 0.0
	goalReached := false
	for steps < t.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return EpisodeMetrics{}, err
		}
		s := t.agent.State()
		next := NextState(s, t.agent.SelectAction())
		sr := Step(t.maze, next, t.rewards)
		trans := next
		if sr.InvalidNext && !t.cfg.PassThroughWalls {
			trans = s
		}
		if t.cfg.RewardShaping && t.hasGoal && !sr.InvalidNext {
			sr.Reward += shapingBonus(t.cfg.Discount, s, trans, t.goal)
		}
		td, err := t.agent.Update(trans, sr)
		if err != nil {
			return EpisodeMetrics{}, err
		}
		loss += huberLoss(td)
		t.agent.AddReward(sr.Reward)
		t.agent.Advance(landing(t.maze, s, trans))
		steps++
		if t.cfg.StepSnapshots {
			out <- t.snapshot(StatusRunning, episode, steps, t.agent.AccumulatedReward(), sr.Reward)
		}
		if sr.IsGoal {
			goalReached = true
			break
		}
		if sr.Terminal {
			break
		}
	}

	t.totalSteps += steps
	if goalReached {
		t.goals++
	}
	t.window.record(goalReached)
	t.agent.DecayEpsilon(t.cfg.Decay, t.totalSteps)

	m := EpisodeMetrics{
		Episode:         episode,
		Reward:          t.agent.AccumulatedReward(),
		CumulativeGoals: t.goals,
		SuccessRate:     t.window.rate(),
		Loss:            loss,
		Steps:           steps,
		GoalReached:     goalReached,
		Epsilon:         epsilon,
	}
	t.metrics = append(t.metrics, m)

	if episode%t.cfg.LogEvery == 0 || episode == t.cfg.Episodes-1 {
		t.log.WithFields(logrus.Fields{
			"episode":      episode,
			"steps":        steps,
			"reward":       fmt.Sprintf("%.3f", m.Reward),
			"loss":         fmt.Sprintf("%.3e", loss),
			"epsilon":      fmt.Sprintf("%.3f", t.agent.Epsilon()),
			"goal":         goalReached,
			"success_rate": fmt.Sprintf("%.2f", m.SuccessRate),
		}).Info("episode finished")
	}
	return m, nil
}

func (t *Trainer) snapshot(status string, episode, episodeSteps int, episodeReward, reward float64) Snapshot {
	return Snapshot{
		Status:            status,
		Episode:           episode,
		EpisodeSteps:      episodeSteps,
		EpisodeReward:     episodeReward,
		Reward:            reward,
		Position:          t.agent.State(),
		Epsilon:           t.agent.Epsilon(),
		SuccessCount:      t.goals,
		EpisodesCompleted: len(t.metrics),
		TotalSteps:        t.totalSteps,
	}
}

// Result is the outcome of Train.
type Result struct {
	RunID   uuid.UUID
	Status  string
	Metrics []EpisodeMetrics
	Rollout RolloutResult
}

// Train drains Run and follows it with a greedy rollout. A cancelled run
// still returns its completed metrics with StatusCancelled.
func (t *Trainer) Train(ctx context.Context) (Result, error) {
	res := Result{RunID: t.runID}
	for snap := range t.Run(ctx) {
		switch snap.Status {
		case StatusFailed:
			res.Status = StatusFailed
			res.Metrics = t.Metrics()
			return res, snap.Err
		case StatusCancelled, StatusConverged, StatusDone:
			res.Status = snap.Status
		}
	}
	res.Metrics = t.Metrics()
	if res.Status != StatusCancelled {
		res.Rollout = t.Rollout()
		t.log.WithFields(logrus.Fields{
			"outcome": res.Rollout.Outcome,
			"steps":   res.Rollout.Steps,
		}).Info("greedy rollout finished")
	}
	return res, nil
}

// Rollout replays the greedy policy from the start cell.
func (t *Trainer) Rollout() RolloutResult {
	return GreedyRollout(t.maze, t.agent.Table(), t.agent.Start(), t.rewards, t.cfg.PassThroughWalls, t.cfg.MaxSteps)
}
