package main

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"mazeq/internal/config"
	"mazeq/internal/engine"
	"mazeq/internal/server"
)

func runServe(ctx context.Context, cfg config.Config, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	cfg.RegisterOutputFlags(fs)
	cfg.RegisterTrainingFlags(fs)
	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address")
	fs.StringVar(&cfg.GinMode, "gin_mode", cfg.GinMode, "gin mode: debug, release or test")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log, err := setup(cfg, stderr)
	if err != nil {
		return err
	}
	gin.SetMode(cfg.GinMode)

	m, q, err := loadPolicy(cfg)
	if err != nil {
		return err
	}
	t := cfg.Training
	policy, err := server.NewPolicy(m, q, engine.NewRewards(m, t.Scaling, t.Rewards), t.PassThroughWalls, t.MaxSteps)
	if err != nil {
		return err
	}
	router := server.NewRouter(server.NewController(policy, log), log)
	return server.Run(ctx, cfg.ListenAddr, router, log)
}
