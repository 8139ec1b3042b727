package report

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mazeq/internal/engine"
)

// Summary condenses a run's metrics.
type Summary struct {
	Episodes     int
	Goals        int
	FirstSuccess int
	FinalSuccess float64
	MeanReward   float64
	StdReward    float64
	BestReward   float64
	MeanSteps    float64
	MedianSteps  float64
	TotalSteps   int
	MeanLoss     float64
}

func Summarize(metrics []engine.EpisodeMetrics) Summary {
	s := Summary{Episodes: len(metrics)}
	if len(metrics) == 0 {
		return s
	}
	rewards := make([]float64, len(metrics))
	steps := make([]float64, len(metrics))
	losses := make([]float64, len(metrics))
	for i, m := range metrics {
		rewards[i] = m.Reward
		steps[i] = float64(m.Steps)
		losses[i] = m.Loss
		s.TotalSteps += m.Steps
	}
	last := metrics[len(metrics)-1]
	s.Goals = last.CumulativeGoals
	s.FinalSuccess = last.SuccessRate
	s.FirstSuccess = FirstSuccess(metrics)

	s.MeanReward, s.StdReward = stat.MeanStdDev(rewards, nil)
	if len(rewards) < 2 {
		s.StdReward = 0
	}
	s.BestReward = floats.Max(rewards)
	s.MeanSteps = stat.Mean(steps, nil)
	sort.Float64s(steps)
	s.MedianSteps = stat.Quantile(0.5, stat.Empirical, steps, nil)
	s.MeanLoss = stat.Mean(losses, nil)
	return s
}

func (s Summary) Fields() logrus.Fields {
	return logrus.Fields{
		"episodes":      s.Episodes,
		"goals":         s.Goals,
		"first_success": s.FirstSuccess,
		"success_rate":  fmt.Sprintf("%.2f", s.FinalSuccess),
		"mean_reward":   fmt.Sprintf("%.3f", s.MeanReward),
		"std_reward":    fmt.Sprintf("%.3f", s.StdReward),
		"best_reward":   fmt.Sprintf("%.3f", s.BestReward),
		"mean_steps":    fmt.Sprintf("%.1f", s.MeanSteps),
		"median_steps":  s.MedianSteps,
		"total_steps":   s.TotalSteps,
		"mean_loss":     fmt.Sprintf("%.3e", s.MeanLoss),
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("episodes=%d goals=%d first_success=%d success_rate=%.2f%% reward=%.3f±%.3f best=%.3f steps mean=%.1f median=%.0f total=%d loss=%.3e",
		s.Episodes, s.Goals, s.FirstSuccess, s.FinalSuccess, s.MeanReward, s.StdReward, s.BestReward,
		s.MeanSteps, s.MedianSteps, s.TotalSteps, s.MeanLoss)
}
