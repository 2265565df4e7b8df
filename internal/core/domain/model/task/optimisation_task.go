package task

import (
	"errors"
	"time"

	"routeopt/internal/core/domain/model/kernel"
	"routeopt/internal/pkg/errs"
)

var (
	// ErrTaskIsNotConstructed is returned when an OptimisationTask instance was not
	// created through the NewOptimisationTask factory method.
	ErrTaskIsNotConstructed = errors.New("OptimisationTask must be created via NewOptimisationTask constructor")

	// ErrTaskInFlight is returned when a new solver invocation is requested while
	// the previous one is still queued or running.
	ErrTaskInFlight = errors.New("optimisation task is already in progress")
)

// OptimisationTask tracks the asynchronous execution of one solver invocation.
//
// OptimisationTask follows these invariants:
//   - It references exactly one optimisation and this never changes
//   - Status transitions follow the Status state machine
//   - StartedAt is set when the task starts, FinishedAt when it finishes
//   - Error is set only for Failed tasks
type OptimisationTask struct {
	// id is the unique identifier for the task
	id kernel.UUID

	// optimisationID is the optimisation the task runs for
	optimisationID kernel.UUID

	// kind tells whether the task builds or refreshes routes
	kind Kind

	// status is the current execution state
	status Status

	// errText keeps the failure reason of a Failed task
	errText string

	createdAt  time.Time
	startedAt  *time.Time
	finishedAt *time.Time

	// isConstructed ensures the task was created via NewOptimisationTask
	isConstructed bool
}

// NewOptimisationTask creates a Pending task for an optimisation.
//
// Parameters:
//   - id: Unique identifier for the task (must be valid UUID)
//   - optimisationID: The optimisation the solver runs for
//   - kind: KindBuild for the first run, KindRefresh for later ones
//   - now: Creation timestamp
//
// Returns:
//   - *OptimisationTask: The created task if all validations pass
//   - error: Validation error if any parameter is invalid
func NewOptimisationTask(id, optimisationID kernel.UUID, kind Kind, now time.Time) (*OptimisationTask, error) {
	t := &OptimisationTask{
		status:        Pending,
		createdAt:     now,
		isConstructed: true,
	}

	if err := errors.Join(
		t.setID(id),
		t.setOptimisationID(optimisationID),
		kind.Validate(),
	); err != nil {
		return nil, err
	}
	t.kind = kind

	return t, nil
}

// RestoreOptimisationTask rebuilds a task from storage.
func RestoreOptimisationTask(
	id, optimisationID kernel.UUID,
	kind Kind,
	status Status,
	errText string,
	createdAt time.Time,
	startedAt, finishedAt *time.Time,
) (*OptimisationTask, error) {
	t, err := NewOptimisationTask(id, optimisationID, kind, createdAt)
	if err != nil {
		return nil, err
	}
	if err = status.Validate(); err != nil {
		return nil, err
	}
	t.status = status
	t.errText = errText
	t.startedAt = startedAt
	t.finishedAt = finishedAt
	return t, nil
}

// Validate ensures the task was properly constructed through NewOptimisationTask.
func (t *OptimisationTask) Validate() error {
	if t == nil || !t.isConstructed {
		return ErrTaskIsNotConstructed
	}
	return nil
}

// ID returns the task's unique identifier.
func (t *OptimisationTask) ID() kernel.UUID {
	return t.id
}

// OptimisationID returns the identifier of the optimisation the task runs for.
func (t *OptimisationTask) OptimisationID() kernel.UUID {
	return t.optimisationID
}

// Kind returns the kind of the current solver invocation.
func (t *OptimisationTask) Kind() Kind {
	return t.kind
}

// Status returns the current execution state.
func (t *OptimisationTask) Status() Status {
	return t.status
}

// Error returns the failure reason of a Failed task.
func (t *OptimisationTask) Error() string {
	return t.errText
}

func (t *OptimisationTask) CreatedAt() time.Time {
	return t.createdAt
}

func (t *OptimisationTask) StartedAt() *time.Time {
	return t.startedAt
}

func (t *OptimisationTask) FinishedAt() *time.Time {
	return t.finishedAt
}

// Rearm prepares a finished task for the next solver invocation.
//
// Returns:
//   - nil when the task went back to Pending
//   - ErrTaskInFlight if the task is still Pending or Running
func (t *OptimisationTask) Rearm(kind Kind, now time.Time) error {
	if t.status.IsInFlight() {
		return ErrTaskInFlight
	}
	if err := kind.Validate(); err != nil {
		return err
	}
	t.kind = kind
	t.status = Pending
	t.errText = ""
	t.createdAt = now
	t.startedAt = nil
	t.finishedAt = nil
	return nil
}

// Start marks the task as picked up by a worker.
func (t *OptimisationTask) Start(now time.Time) error {
	next, err := t.status.Start()
	if err != nil {
		return err
	}
	t.status = next
	t.startedAt = &now
	return nil
}

// Complete marks the task as successfully finished.
func (t *OptimisationTask) Complete(now time.Time) error {
	next, err := t.status.Finish(true)
	if err != nil {
		return err
	}
	t.status = next
	t.finishedAt = &now
	return nil
}

// Fail marks the task as finished with an error.
//
// Parameters:
//   - reason: Human readable failure reason (required)
//   - now: Finish timestamp
func (t *OptimisationTask) Fail(reason string, now time.Time) error {
	if reason == "" {
		return errs.NewValueIsRequiredError("task failure reason")
	}
	next, err := t.status.Finish(false)
	if err != nil {
		return err
	}
	t.status = next
	t.errText = reason
	t.finishedAt = &now
	return nil
}

func (t *OptimisationTask) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	t.id = id
	return nil
}

func (t *OptimisationTask) setOptimisationID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("optimisation", err)
	}
	t.optimisationID = id
	return nil
}
