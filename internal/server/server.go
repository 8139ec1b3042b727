// Package server exposes a trained policy over HTTP. It is read-only: the
// table it serves is loaded once and never updated.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mazeq/internal/engine"
	"mazeq/internal/maze"
)

// Policy is a maze together with the table that drives it.
type Policy struct {
	ID               uuid.UUID
	Maze             *maze.Maze
	Table            *engine.QTable
	Rewards          engine.Rewards
	PassThroughWalls bool
	MaxSteps         int
}

func NewPolicy(m *maze.Maze, q *engine.QTable, rewards engine.Rewards, passThroughWalls bool, maxSteps int) (*Policy, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "new policy")
	}
	if !q.Compatible(m.Rows(), m.Cols()) {
		return nil, errors.Wrap(engine.ErrDimensionMismatch, "new policy")
	}
	return &Policy{
		ID:               uuid.New(),
		Maze:             m,
		Table:            q.Clone(),
		Rewards:          rewards,
		PassThroughWalls: passThroughWalls,
		MaxSteps:         maxSteps,
	}, nil
}

// Controller serves policy queries.
type Controller struct {
	policy *Policy
	log    logrus.FieldLogger
}

func NewController(policy *Policy, log logrus.FieldLogger) *Controller {
	return &Controller{policy: policy, log: log.WithField("policy_id", policy.ID.String())}
}

// RegisterPublic registers the read-only routes.
func (c *Controller) RegisterPublic(route *gin.RouterGroup) {
	route.GET("/policy", c.action)
	route.GET("/qtable", c.table)
	route.GET("/rollout", c.rollout)
}

func (c *Controller) action(ctx *gin.Context) {
	var query StateQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := engine.State{X: *query.X, Y: *query.Y}
	m := c.policy.Maze
	if !m.InBounds(s.Y, s.X) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "state outside the maze"})
		return
	}
	best := c.policy.Table.MaxValueAction(s)
	values := make(map[string]float32, engine.NumActions)
	for a := engine.Action(0); a < engine.NumActions; a++ {
		values[a.String()] = c.policy.Table.Get(s, a)
	}
	ctx.JSON(http.StatusOK, PolicyResponse{
		State:  toStateDTO(s),
		Cell:   m.Cell(s.Y, s.X).String(),
		Action: best.Action.String(),
		Value:  best.Value,
		Values: values,
	})
}

func (c *Controller) table(ctx *gin.Context) {
	cols, rows, actions := c.policy.Table.Dims()
	resp := TableResponse{
		PolicyID: c.policy.ID.String(),
		Rows:     rows,
		Cols:     cols,
		Actions:  actions,
		Start:    toStateDTO(engine.StartState(c.policy.Maze)),
		Maze:     strings.Split(strings.TrimSuffix(c.policy.Maze.String(), "\n"), "\n"),
	}
	if goal, ok := engine.GoalState(c.policy.Maze); ok {
		dto := toStateDTO(goal)
		resp.Goal = &dto
	}
	ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) rollout(ctx *gin.Context) {
	var query RolloutQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start := engine.StartState(c.policy.Maze)
	if query.X != nil || query.Y != nil {
		if query.X == nil || query.Y == nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "x and y go together"})
			return
		}
		start = engine.State{X: *query.X, Y: *query.Y}
		if !c.policy.Maze.InBounds(start.Y, start.X) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "state outside the maze"})
			return
		}
	}
	maxSteps := c.policy.MaxSteps
	if query.MaxSteps > 0 {
		maxSteps = query.MaxSteps
	}
	res := engine.GreedyRollout(c.policy.Maze, c.policy.Table, start, c.policy.Rewards, c.policy.PassThroughWalls, maxSteps)
	resp := RolloutResponse{
		Outcome: string(res.Outcome),
		Steps:   res.Steps,
		Reward:  res.Reward,
		Path:    make([]StateDTO, len(res.Path)),
		Actions: make([]string, len(res.Actions)),
	}
	for i, s := range res.Path {
		resp.Path[i] = toStateDTO(s)
	}
	for i, a := range res.Actions {
		resp.Actions[i] = a.String()
	}
	c.log.WithFields(logrus.Fields{"start": start.String(), "outcome": res.Outcome, "steps": res.Steps}).Debug("rollout served")
	ctx.JSON(http.StatusOK, resp)
}

// requestLogger logs one line per request through logrus.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		log.WithFields(logrus.Fields{
			"method":  ctx.Request.Method,
			"path":    ctx.Request.URL.Path,
			"status":  ctx.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}

// NewRouter wires the controller under /v1 plus a health check.
func NewRouter(c *Controller, log logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	v1 := router.Group("/v1")
	{
		c.RegisterPublic(v1)
	}
	return router
}

// Run serves handler on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, log logrus.FieldLogger) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("policy server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return errors.Wrap(err, "policy server")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown policy server")
	}
	log.Info("policy server stopped")
	return nil
}
