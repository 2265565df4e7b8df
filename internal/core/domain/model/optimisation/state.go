package optimisation

import (
	"fmt"

	"routeopt/internal/pkg/errs"
)

type Type string

const (
	Solo     Type = "solo"
	Advanced Type = "advanced"
)

func (t Type) Validate() error {
	if t != Solo && t != Advanced {
		return errs.NewValueIsInvalidErrorWithCause("type", fmt.Errorf("%q is not a valid optimisation type", string(t)))
	}
	return nil
}

// State of an optimisation.
//
//	Created ──> Running ──┬──> Completed ──> Running ──> Finished
//	                      └──> Failed
//
// Running before Completed means the solver is working; after Completed it
// means drivers have started their routes. Removed is reachable from every
// state except itself.
type State string

const (
	Created   State = "created"
	Running   State = "running"
	Completed State = "completed"
	Finished  State = "finished"
	Failed    State = "failed"
	Removed   State = "removed"
)

var transitions = map[State][]State{
	Created:   {Running, Completed, Failed, Removed},
	Running:   {Completed, Finished, Failed, Removed},
	Completed: {Running, Finished, Failed, Removed},
	Finished:  {Running, Completed, Failed, Removed},
	Failed:    {Running, Completed, Removed},
	Removed:   {},
}

func (s State) Validate() error {
	if _, ok := transitions[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("state", fmt.Errorf("%q is not a valid optimisation state", string(s)))
	}
	return nil
}

func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsManageable reports whether routes may still be moved or reordered.
func (s State) IsManageable() bool {
	return s == Completed || s == Running
}

func (s State) String() string {
	return string(s)
}

type Role string

const (
	RoleManager Role = "manager"
	RoleDriver  Role = "driver"
)

// Initiator is the member who requested an operation.
type Initiator struct {
	MemberID string `json:"member_id"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

// Label renders the initiator the way log messages mention people.
func (i Initiator) Label() string {
	if i.Name == "" {
		return string(i.Role)
	}
	return fmt.Sprintf("%s %s", i.Role, i.Name)
}

func (i Initiator) Validate() error {
	if i.MemberID == "" {
		return errs.NewValueIsRequiredError("initiator")
	}
	if i.Role != RoleManager && i.Role != RoleDriver {
		return errs.NewValueIsInvalidErrorWithCause("role", fmt.Errorf("%q is not a valid role", string(i.Role)))
	}
	return nil
}
