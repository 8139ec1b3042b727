package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"mazeq/internal/config"
	"mazeq/internal/engine"
	"mazeq/internal/report"
)

func runRollout(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("rollout", stderr)
	cfg.RegisterOutputFlags(fs)
	cfg.RegisterTrainingFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	log, err := setup(cfg, stderr)
	if err != nil {
		return err
	}
	m, q, err := loadPolicy(cfg)
	if err != nil {
		return err
	}
	t := cfg.Training
	rewards := engine.NewRewards(m, t.Scaling, t.Rewards)
	res := engine.GreedyRollout(m, q, engine.StartState(m), rewards, t.PassThroughWalls, t.MaxSteps)
	log.WithFields(logrus.Fields{
		"outcome": res.Outcome,
		"steps":   res.Steps,
		"reward":  res.Reward,
	}).Info("greedy rollout finished")

	fmt.Fprintf(stdout, "%s after %d steps, reward %.3f\n", res.Outcome, res.Steps, res.Reward)
	for i, a := range res.Actions {
		fmt.Fprintf(stdout, "%3d %s -> %s\n", i+1, a, res.Path[i+1])
	}
	return report.RenderMaze(stdout, m, q, res.Path, cfg.Color)
}
