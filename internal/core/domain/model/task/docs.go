// Package task provides the OptimisationTask entity that tracks one
// asynchronous solver invocation for a route optimisation.
//
// The package includes:
//   - OptimisationTask: the entity holding execution status, kind and timestamps
//   - Status: a state machine that enforces valid task status transitions
//   - Kind: whether the task builds routes from scratch or refreshes them
//
// Key business rules:
//   - A task belongs to exactly one optimisation
//   - Status follows a defined workflow: Pending -> Running -> Completed | Failed
//   - A finished task (Completed or Failed) can be re-armed for the next
//     solver invocation of the same optimisation
package task
