package main

import (
	"errors"
	"fmt"
	"io"

	"mazeq/internal/config"
	"mazeq/internal/engine"
	"mazeq/internal/maze"
	"mazeq/internal/report"
)

// runInspect prints a maze, optionally with a table's policy and values, or
// turns an existing metrics CSV into a summary and chart page.
func runInspect(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("inspect", stderr)
	cfg.RegisterOutputFlags(fs)
	metricsPath := fs.String("metrics", "", "metrics CSV to summarize instead of a maze")
	htmlPath := fs.String("html", "", "with -metrics, write the chart page here")
	values := fs.Bool("values", false, "print state values from -qtable_path")
	withTable := fs.Bool("policy", false, "overlay the greedy policy from -qtable_path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *metricsPath != "" {
		metrics, err := report.LoadMetricsCSV(*metricsPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, report.Summarize(metrics))
		if *htmlPath != "" {
			return report.SaveMetricsHTML(*htmlPath, metrics, *metricsPath)
		}
		return nil
	}

	if cfg.MazePath == "" {
		return errors.New("inspect needs -maze or -metrics")
	}
	if !*values && !*withTable {
		m, err := maze.Load(cfg.MazePath)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%dx%d maze, %d open, %d walls, %d goals\n",
			m.Rows(), m.Cols(), m.Count(maze.Open), m.Count(maze.Wall), m.Count(maze.Goal))
		if err := m.Validate(); err != nil {
			fmt.Fprintf(stdout, "not trainable: %v\n", err)
		}
		return report.RenderMaze(stdout, m, nil, nil, cfg.Color)
	}

	m, q, err := loadPolicy(cfg)
	if err != nil {
		return err
	}
	cols, rows, actions := q.Dims()
	fmt.Fprintf(stdout, "q-table %dx%dx%d, start %s\n", cols, rows, actions, engine.StartState(m))
	if *withTable {
		if err := report.RenderMaze(stdout, m, q, nil, cfg.Color); err != nil {
			return err
		}
	}
	if *values {
		return report.RenderValues(stdout, m, q, cfg.Color)
	}
	return nil
}
