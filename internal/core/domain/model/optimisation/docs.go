// Package optimisation contains the RouteOptimisation aggregate root: one
// optimisation run for a merchant and a day, its validated options, its state
// and its append-only log.
//
// Routes produced by an optimisation are a separate aggregate (package route)
// so that they can be locked and mutated independently.
package optimisation
