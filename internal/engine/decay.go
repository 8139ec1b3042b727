package engine

import (
	"fmt"
	"math"
	"strings"
)

// DecaySchedule is the closed set of epsilon schedules.
type DecaySchedule int

const (
	// DecayStepExponential sets epsilon from the cumulative step count:
	// final + (start-final)*exp(-steps/decay).
	DecayStepExponential DecaySchedule = iota
	// DecayLinear subtracts decay once per episode.
	DecayLinear
	// DecayExponential multiplies by decay once per episode.
	DecayExponential
)

func (d DecaySchedule) String() string {
	switch d {
	case DecayStepExponential:
		return "step-exponential"
	case DecayLinear:
		return "linear"
	case DecayExponential:
		return "exponential"
	default:
		return fmt.Sprintf("DecaySchedule(%d)", int(d))
	}
}

func ParseDecaySchedule(s string) (DecaySchedule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "step-exponential", "step", "steps":
		return DecayStepExponential, nil
	case "linear":
		return DecayLinear, nil
	case "exponential", "exp":
		return DecayExponential, nil
	default:
		return 0, fmt.Errorf("unknown decay schedule %q", s)
	}
}

// linearDecay and exponentialDecay apply one decay call, clamped to [0,1].
func linearDecay(epsilon, delta float64) float64 {
	return clamp(epsilon-delta, 0, 1)
}

func exponentialDecay(epsilon, delta float64) float64 {
	return clamp(epsilon*delta, 0, 1)
}

// stepExponentialEpsilon is the cumulative-step schedule. A non-positive
// constant counts as 1 and a non-finite result falls back to final.
func stepExponentialEpsilon(start, final, constant float64, totalSteps int) float64 {
	if constant <= 0 {
		constant = 1
	}
	eps := final + (start-final)*math.Exp(-float64(totalSteps)/constant)
	if math.IsNaN(eps) || math.IsInf(eps, 0) {
		eps = final
	}
	return clamp(eps, clamp(final, 0, 1), 1)
}
