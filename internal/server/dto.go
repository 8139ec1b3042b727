package server

import "mazeq/internal/engine"

// StateQuery selects a cell. Pointers keep x=0 distinguishable from missing.
type StateQuery struct {
	X *int `form:"x" binding:"required,min=0"`
	Y *int `form:"y" binding:"required,min=0"`
}

// RolloutQuery optionally moves the rollout start away from the maze start.
type RolloutQuery struct {
	X        *int `form:"x" binding:"omitempty,min=0"`
	Y        *int `form:"y" binding:"omitempty,min=0"`
	MaxSteps int  `form:"max_steps" binding:"omitempty,min=1"`
}

type StateDTO struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func toStateDTO(s engine.State) StateDTO {
	return StateDTO{X: s.X, Y: s.Y}
}

type PolicyResponse struct {
	State  StateDTO           `json:"state"`
	Cell   string             `json:"cell"`
	Action string             `json:"action"`
	Value  float32            `json:"value"`
	Values map[string]float32 `json:"values"`
}

type TableResponse struct {
	PolicyID string    `json:"policy_id"`
	Rows     int       `json:"rows"`
	Cols     int       `json:"cols"`
	Actions  int       `json:"actions"`
	Start    StateDTO  `json:"start"`
	Goal     *StateDTO `json:"goal,omitempty"`
	Maze     []string  `json:"maze"`
}

type RolloutResponse struct {
	Outcome string     `json:"outcome"`
	Steps   int        `json:"steps"`
	Reward  float64    `json:"reward"`
	Path    []StateDTO `json:"path"`
	Actions []string   `json:"actions"`
}
