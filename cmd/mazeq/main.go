package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"mazeq/internal/config"
	"mazeq/internal/engine"
	"mazeq/internal/maze"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "mazeq: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		return errors.New("missing subcommand; try 'train', 'rollout', 'inspect' or 'serve'")
	}

	cfg, err := config.Load(logrus.StandardLogger())
	if err != nil {
		return err
	}

	subcommand := args[0]
	switch subcommand {
	case "train":
		return runTrain(ctx, cfg, args[1:], stdout, stderr)
	case "rollout":
		return runRollout(cfg, args[1:], stdout, stderr)
	case "inspect":
		return runInspect(cfg, args[1:], stdout, stderr)
	case "serve":
		return runServe(ctx, cfg, args[1:], stderr)
	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// setup validates cfg and builds its logger.
func setup(cfg config.Config, stderr io.Writer) (*logrus.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.NewLogger(stderr)
}

// loadPolicy reads the maze and a table that fits it.
func loadPolicy(cfg config.Config) (*maze.Maze, *engine.QTable, error) {
	m, err := maze.Load(cfg.MazePath)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, nil, fmt.Errorf("maze %s: %w", cfg.MazePath, err)
	}
	q, err := engine.LoadQTable(cfg.QTablePath)
	if err != nil {
		return nil, nil, err
	}
	if !q.Compatible(m.Rows(), m.Cols()) {
		cols, rows, actions := q.Dims()
		return nil, nil, fmt.Errorf("q-table %s is %dx%dx%d, maze is %dx%d: %w",
			cfg.QTablePath, cols, rows, actions, m.Cols(), m.Rows(), engine.ErrDimensionMismatch)
	}
	return m, q, nil
}
