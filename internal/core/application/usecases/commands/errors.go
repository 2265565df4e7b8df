package commands

import "errors"

var (
	// ErrOptimisationBusy is returned while a solver run holds the optimisation.
	ErrOptimisationBusy = errors.New("optimisation is being solved, try again later")

	// ErrNothingToRefresh is returned when no new eligible job appeared.
	ErrNothingToRefresh = errors.New("Nothing to refresh. Everything is already optimised")

	ErrOptimisationIsNotManageable = errors.New("routes of the optimisation can not be changed in its state")
)
