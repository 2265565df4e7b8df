// Package services provides domain services that span several aggregates of
// the route optimisation domain.
//
// The package includes:
//   - OptionsValidator: checks optimisation options against jobs, drivers and places
//   - Sequencer: recomputes point times and reports capacity and window violations
//   - StateMachine: derives optimisation and route states from job statuses
//   - Plan: turns drivers and jobs into a solver problem and solved timelines into route points
//
// Subpackages hold the solver heuristic and the per-run distance cache.
package services
