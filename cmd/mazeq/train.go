package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"mazeq/internal/config"
	"mazeq/internal/engine"
	"mazeq/internal/maze"
	"mazeq/internal/report"
)

func runTrain(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("train", stderr)
	cfg.RegisterOutputFlags(fs)
	cfg.RegisterTrainingFlags(fs)
	fs.StringVar(&cfg.InitQTable, "init_qtable", cfg.InitQTable, "continue training from this q-table")
	fs.StringVar(&cfg.MetricsPath, "metrics_path", cfg.MetricsPath, "per-episode metrics CSV")
	fs.StringVar(&cfg.HTMLPath, "html", cfg.HTMLPath, "metrics chart page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log, err := setup(cfg, stderr)
	if err != nil {
		return err
	}

	m, err := maze.Load(cfg.MazePath)
	if err != nil {
		return err
	}
	trainer, err := engine.NewTrainer(m, cfg.TrainerConfig(log))
	if err != nil {
		return err
	}
	runLog := log.WithField("run_id", trainer.RunID().String())
	if cfg.InitQTable != "" {
		if err := trainer.Agent().LoadTable(cfg.InitQTable); err != nil {
			return err
		}
		runLog.WithField("path", cfg.InitQTable).Info("continuing from saved q-table")
	}

	res, trainErr := trainer.Train(ctx)
	if trainErr != nil {
		runLog.WithError(trainErr).Error("training failed")
	}

	// Whatever happened, keep what was learned.
	saveErr := saveRun(cfg, trainer, res, runLog)

	summary := report.Summarize(res.Metrics)
	runLog.WithFields(summary.Fields()).WithField("status", res.Status).Info("run summary")
	fmt.Fprintln(stdout, summary)
	if res.Status != engine.StatusCancelled && res.Status != engine.StatusFailed {
		fmt.Fprintf(stdout, "greedy rollout: %s after %d steps, reward %.3f\n", res.Rollout.Outcome, res.Rollout.Steps, res.Rollout.Reward)
		if err := report.RenderMaze(stdout, m, trainer.Agent().Table(), res.Rollout.Path, cfg.Color); err != nil {
			saveErr = errors.Join(saveErr, err)
		}
	}
	return errors.Join(trainErr, saveErr)
}

// saveRun writes the table and the metrics. Each output is attempted even
// when an earlier one fails.
func saveRun(cfg config.Config, trainer *engine.Trainer, res engine.Result, log logrus.FieldLogger) error {
	var errs []error
	if err := trainer.Agent().SaveTable(cfg.QTablePath); err != nil {
		log.WithError(err).Error("could not save q-table")
		errs = append(errs, err)
	} else {
		log.WithField("path", cfg.QTablePath).Info("q-table saved")
	}
	if cfg.MetricsPath != "" {
		if err := report.SaveMetricsCSV(cfg.MetricsPath, res.Metrics); err != nil {
			log.WithError(err).Error("could not save metrics")
			errs = append(errs, err)
		} else {
			log.WithField("path", cfg.MetricsPath).Info("metrics saved")
		}
	}
	if cfg.HTMLPath != "" {
		title := fmt.Sprintf("mazeq run %s", res.RunID)
		if err := report.SaveMetricsHTML(cfg.HTMLPath, res.Metrics, title); err != nil {
			log.WithError(err).Error("could not save metrics chart")
			errs = append(errs, err)
		} else {
			log.WithField("path", cfg.HTMLPath).Info("metrics chart saved")
		}
	}
	return errors.Join(errs...)
}
