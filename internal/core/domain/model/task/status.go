package task

import (
	"fmt"

	"routeopt/internal/pkg/errs"
)

// Status represents the execution state of an optimisation task.
//
// State transitions:
//
//	Pending ──> Running ──┬──> Completed
//	   ^                  └──> Failed
//	   └───────── (re-armed) ─────┘
type Status int

const (
	// Unknown represents an invalid or undefined status.
	// This value (0) helps catch uninitialized Status values.
	Unknown Status = iota

	// Pending is the status of a task waiting for a worker.
	Pending

	// Running indicates the solver is working on the task.
	Running

	// Completed indicates the solver produced routes.
	Completed

	// Failed indicates the solver invocation ended with an error.
	Failed
)

func getStatusStrings() map[Status]string {
	return map[Status]string{
		Unknown:   "unknown",
		Pending:   "pending",
		Running:   "running",
		Completed: "completed",
		Failed:    "failed",
	}
}

// ParseStatus converts the persisted representation back to a Status.
func ParseStatus(s string) (Status, error) {
	for st, str := range getStatusStrings() {
		if str == s && st != Unknown {
			return st, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("task status", fmt.Errorf("%q is not a valid status", s))
}

// Validate checks if the Status value is valid.
//
// Returns:
//   - nil if the status is valid
//   - error with details if the status is invalid
func (s Status) Validate() error {
	if s <= Unknown || s > Failed {
		return errs.NewValueIsInvalidErrorWithCause("task status", fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// String returns the persisted name of the status.
func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "unknown"
}

// IsInFlight reports whether a solver invocation is queued or running.
func (s Status) IsInFlight() bool {
	return s == Pending || s == Running
}

// Start transitions the status to Running.
//
// Valid transitions:
//   - Pending -> Running
//
// Returns:
//   - (Running, nil) on valid transition
//   - (Unknown, error) if transition is not allowed from current status
func (s Status) Start() (Status, error) {
	if s != Pending {
		return Unknown, errs.NewValueIsInvalidErrorWithCause(
			"task status",
			fmt.Errorf("%s is not a valid status to start", s),
		)
	}
	return Running, nil
}

// Finish transitions a running status to Completed or Failed.
func (s Status) Finish(ok bool) (Status, error) {
	if s != Running {
		return Unknown, errs.NewValueIsInvalidErrorWithCause(
			"task status",
			fmt.Errorf("%s is not a valid status to finish", s),
		)
	}
	if ok {
		return Completed, nil
	}
	return Failed, nil
}

// Kind tells what the solver is asked to do.
type Kind string

const (
	KindBuild   Kind = "build"
	KindRefresh Kind = "refresh"
)

func (k Kind) Validate() error {
	if k != KindBuild && k != KindRefresh {
		return errs.NewValueIsInvalidErrorWithCause("task kind", fmt.Errorf("%q is not a valid kind", string(k)))
	}
	return nil
}
