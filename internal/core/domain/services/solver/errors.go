package solver

import "errors"

// ErrInfeasible matches every InfeasibleError.
var ErrInfeasible = errors.New("infeasible")

// InfeasibleError is a valid problem the solver can not satisfy.
type InfeasibleError struct {
	Reason string
}

func (e *InfeasibleError) Error() string {
	return e.Reason
}

func (e *InfeasibleError) Unwrap() error {
	return ErrInfeasible
}

var (
	ErrNoSolution          = &InfeasibleError{Reason: "no solution found"}
	ErrDifferentContinents = &InfeasibleError{Reason: "hubs on different continents"}
)
