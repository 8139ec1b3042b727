package engine

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mazeq/internal/maze"
)

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func corridor(t testing.TB) *maze.Maze {
	t.Helper()
	m, err := maze.Parse(
		"#######",
		"#S...G#",
		"#######",
	)
	require.NoError(t, err)
	return m
}

func smallRoom(t testing.TB) *maze.Maze {
	t.Helper()
	m, err := maze.Parse(
		"######",
		"#S...#",
		"#.##.#",
		"#...G#",
		"######",
	)
	require.NoError(t, err)
	return m
}

func TestQLearningSmoke(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Episodes = 60
	cfg.MaxSteps = 200
	cfg.Seed = 7
	cfg.EpsilonDecay = 500
	cfg.Logger = quietLogger()

	trainer, err := NewTrainer(smallRoom(t), cfg)
	require.NoError(t, err)

	var final Snapshot
	for snapshot := range trainer.Run(context.Background()) {
		final = snapshot
	}

	assert.Equal(t, StatusDone, final.Status)
	assert.Equal(t, cfg.Episodes, final.EpisodesCompleted)
	assert.GreaterOrEqual(t, final.SuccessCount, 1)
	assert.Len(t, trainer.Metrics(), cfg.Episodes)

	avgSteps := float64(final.TotalSteps) / float64(cfg.Episodes)
	assert.Less(t, avgSteps, float64(cfg.MaxSteps))
}

func TestTrainReachesGoalOnCorridor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Episodes = 80
	cfg.MaxSteps = 100
	cfg.EpsilonDecay = 200
	cfg.Logger = quietLogger()

	trainer, err := NewTrainer(corridor(t), cfg)
	require.NoError(t, err)

	res, err := trainer.Train(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, trainer.RunID(), res.RunID)
	assert.Equal(t, RolloutGoal, res.Rollout.Outcome)
	assert.Equal(t, 4, res.Rollout.Steps)
	assert.Equal(t, State{X: 5, Y: 1}, res.Rollout.Path[len(res.Rollout.Path)-1])
}

func TestTrainingIsDeterministicForSeed(t *testing.T) {
	run := func() []EpisodeMetrics {
		cfg := DefaultConfig()
		cfg.Episodes = 15
		cfg.MaxSteps = 80
		cfg.Seed = 11
		cfg.Logger = quietLogger()
		trainer, err := NewTrainer(smallRoom(t), cfg)
		require.NoError(t, err)
		res, err := trainer.Train(context.Background())
		require.NoError(t, err)
		return res.Metrics
	}
	assert.Equal(t, run(), run())
}

func TestMetricsInvariants(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Episodes = 40
	cfg.MaxSteps = 50
	cfg.SuccessWindow = 5
	cfg.Logger = quietLogger()

	trainer, err := NewTrainer(smallRoom(t), cfg)
	require.NoError(t, err)
	res, err := trainer.Train(context.Background())
	require.NoError(t, err)

	prevGoals := 0
	for _, m := range res.Metrics {
		assert.GreaterOrEqual(t, m.CumulativeGoals, prevGoals)
		assert.LessOrEqual(t, m.Steps, cfg.MaxSteps)
		assert.GreaterOrEqual(t, m.SuccessRate, 0.0)
		assert.LessOrEqual(t, m.SuccessRate, 100.0)
		assert.GreaterOrEqual(t, m.Loss, 0.0)
		assert.GreaterOrEqual(t, m.Epsilon, cfg.EpsilonFinal)
		assert.LessOrEqual(t, m.Epsilon, 1.0)
		prevGoals = m.CumulativeGoals
	}
}

func TestRunCancelledKeepsCompletedEpisodes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Episodes = 1000
	cfg.Logger = quietLogger()

	trainer, err := NewTrainer(smallRoom(t), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var final Snapshot
	for snapshot := range trainer.Run(ctx) {
		if snapshot.Status == StatusEpisodeComplete && snapshot.Episode == 2 {
			cancel()
		}
		final = snapshot
	}
	cancel()

	// The episode in flight when cancel lands may or may not finish.
	assert.Equal(t, StatusCancelled, final.Status)
	assert.GreaterOrEqual(t, len(trainer.Metrics()), 3)
	assert.Less(t, len(trainer.Metrics()), cfg.Episodes)
	assert.Equal(t, len(trainer.Metrics()), final.EpisodesCompleted)
}

func TestTrainCancelledSkipsRollout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	trainer, err := NewTrainer(smallRoom(t), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := trainer.Train(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, res.Status)
	assert.Empty(t, res.Metrics)
	assert.Empty(t, res.Rollout.Path)
}

func TestSuccessThresholdStopsEarly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Episodes = 500
	cfg.MaxSteps = 100
	cfg.EpsilonDecay = 100
	cfg.EpsilonFinal = 0
	cfg.SuccessWindow = 10
	cfg.SuccessThreshold = 100
	cfg.Logger = quietLogger()

	trainer, err := NewTrainer(corridor(t), cfg)
	require.NoError(t, err)

	var final Snapshot
	for snapshot := range trainer.Run(context.Background()) {
		final = snapshot
	}
	assert.Equal(t, StatusConverged, final.Status)
	assert.Less(t, final.EpisodesCompleted, cfg.Episodes)
	last := trainer.Metrics()[final.EpisodesCompleted-1]
	assert.Equal(t, 100.0, last.SuccessRate)
}

func TestStepSnapshotsFollowEpisodeOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Episodes = 3
	cfg.MaxSteps = 20
	cfg.StepSnapshots = true
	cfg.Logger = quietLogger()

	trainer, err := NewTrainer(smallRoom(t), cfg)
	require.NoError(t, err)

	steps := 0
	for snapshot := range trainer.Run(context.Background()) {
		switch snapshot.Status {
		case StatusRunning:
			steps++
			assert.Equal(t, steps, snapshot.EpisodeSteps)
		case StatusEpisodeComplete:
			require.NotNil(t, snapshot.Metrics)
			assert.Equal(t, steps, snapshot.Metrics.Steps)
			steps = 0
		}
	}
}

func TestNewTrainerRejectsBadInput(t *testing.T) {
	noStart, err := maze.Parse("...G")
	require.NoError(t, err)
	_, err = NewTrainer(noStart, Config{Logger: quietLogger()})
	assert.ErrorIs(t, err, maze.ErrNoStart)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative episodes", func(c *Config) { c.Episodes = -1 }},
		{"learning rate above one", func(c *Config) { c.LearningRate = 1.5 }},
		{"discount above one", func(c *Config) { c.Discount = 2 }},
		{"final above start", func(c *Config) { c.EpsilonStart = 0.5; c.EpsilonFinal = 0.6 }},
		{"threshold above 100", func(c *Config) { c.SuccessThreshold = 101 }},
		{"unknown schedule", func(c *Config) { c.Decay = DecaySchedule(9) }},
		{"linear decay above one", func(c *Config) { c.Decay = DecayLinear; c.EpsilonDecay = 37001 }},
		{"exponential decay above one", func(c *Config) { c.Decay = DecayExponential; c.EpsilonDecay = 1.5 }},
		{"unknown scaling", func(c *Config) { c.Scaling = RewardScaling(9) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Logger = quietLogger()
			tt.mutate(&cfg)
			_, err := NewTrainer(smallRoom(t), cfg)
			assert.Error(t, err)
		})
	}
}

func TestTrainersDoNotShareCounters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Episodes = 5
	cfg.MaxSteps = 30
	cfg.Logger = quietLogger()

	a, err := NewTrainer(smallRoom(t), cfg)
	require.NoError(t, err)
	b, err := NewTrainer(smallRoom(t), cfg)
	require.NoError(t, err)

	_, err = a.Train(context.Background())
	require.NoError(t, err)
	assert.Zero(t, b.TotalSteps())
	assert.Empty(t, b.Metrics())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestScheduleDefaultsDecayEpsilon(t *testing.T) {
	for _, schedule := range []DecaySchedule{DecayStepExponential, DecayLinear, DecayExponential} {
		t.Run(schedule.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Decay = schedule
			cfg.Episodes = 30
			cfg.MaxSteps = 50
			cfg.Logger = quietLogger()

			trainer, err := NewTrainer(smallRoom(t), cfg)
			require.NoError(t, err)
			assert.Equal(t, DefaultDecayFor(schedule), trainer.Config().EpsilonDecay)

			res, err := trainer.Train(context.Background())
			require.NoError(t, err)
			require.Len(t, res.Metrics, cfg.Episodes)
			assert.Equal(t, 1.0, res.Metrics[0].Epsilon)
			assert.Less(t, trainer.Agent().Epsilon(), 1.0, "epsilon must move off its start")
			assert.Greater(t, trainer.Agent().Epsilon(), 0.5, "epsilon must not collapse after a few episodes")
		})
	}
}

// forcedTrainer runs one greedy episode with lr 1 and discount 0.5 after
// prime has seeded the table, so each update is exact.
func forcedTrainer(t *testing.T, rows []string, maxSteps int, mutate func(*Config), prime func(*QTable)) *Trainer {
	t.Helper()
	m, err := maze.Parse(rows...)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Episodes = 1
	cfg.MaxSteps = maxSteps
	cfg.LearningRate = 1
	cfg.Discount = 0.5
	cfg.Scaling = Unscaled
	cfg.Logger = quietLogger()
	if mutate != nil {
		mutate(&cfg)
	}

	trainer, err := NewTrainer(m, cfg)
	require.NoError(t, err)
	prime(trainer.Agent().Table())
	trainer.Agent().SetEpsilon(0)
	for range trainer.Run(context.Background()) {
	}
	require.Len(t, trainer.Metrics(), 1)
	return trainer
}

func TestBlockedWallBootstrapsFromCurrentState(t *testing.T) {
	start, wall := State{X: 0}, State{X: 1}
	prime := func(q *QTable) {
		q.Set(start, ActionRight, 2)
		q.Set(wall, ActionRight, 4)
	}

	trainer := forcedTrainer(t, []string{"S#G"}, 1, nil, prime)
	// -0.5 + 0.5*max Q(start) with max Q(start) = 2.
	assert.InDelta(t, 0.5, trainer.Agent().Table().Get(start, ActionRight), 1e-6)
	assert.Equal(t, start, trainer.Agent().State())
	assert.Equal(t, float32(4), trainer.Agent().Table().Get(wall, ActionRight))

	trainer = forcedTrainer(t, []string{"S#G"}, 20, nil, prime)
	m := trainer.Metrics()[0]
	assert.False(t, m.GoalReached)
	assert.Equal(t, 20, m.Steps)
}

func TestPassThroughWallsReachesGoal(t *testing.T) {
	start, wall := State{X: 0}, State{X: 1}
	prime := func(q *QTable) {
		q.Set(start, ActionRight, 2)
		q.Set(wall, ActionRight, 4)
	}
	passThrough := func(c *Config) { c.PassThroughWalls = true }

	trainer := forcedTrainer(t, []string{"S#G"}, 1, passThrough, prime)
	// -0.5 + 0.5*max Q(wall) with max Q(wall) = 4.
	assert.InDelta(t, 1.5, trainer.Agent().Table().Get(start, ActionRight), 1e-6)
	assert.Equal(t, wall, trainer.Agent().State())

	trainer = forcedTrainer(t, []string{"S#G"}, 20, passThrough, prime)
	m := trainer.Metrics()[0]
	assert.True(t, m.GoalReached)
	assert.Equal(t, 2, m.Steps)
	assert.InDelta(t, -0.5+1, m.Reward, 1e-12)
	assert.Equal(t, State{X: 2}, trainer.Agent().State())
}

func TestShapingOnlyOnValidMoves(t *testing.T) {
	episodeReward := func(rows []string, shaping bool) float64 {
		trainer := forcedTrainer(t, rows, 1, func(c *Config) {
			c.RewardShaping = shaping
			c.PassThroughWalls = true
		}, func(q *QTable) {
			q.Set(State{X: 0}, ActionRight, 2)
		})
		return trainer.Metrics()[0].Reward
	}

	// Open step one cell closer to the goal: 0.5*(2-1) on top of -0.01.
	assert.InDelta(t, -0.01, episodeReward([]string{"S.G"}, false), 1e-12)
	assert.InDelta(t, -0.01+0.5, episodeReward([]string{"S.G"}, true), 1e-12)

	// The same step into a wall is invalid and earns no bonus, even though
	// pass-through leaves the agent one cell closer.
	assert.InDelta(t, -0.5, episodeReward([]string{"S#G"}, false), 1e-12)
	assert.InDelta(t, -0.5, episodeReward([]string{"S#G"}, true), 1e-12)
}
