// Package route contains the DriverRoute aggregate: the ordered list of
// RoutePoints one driver visits within an optimisation.
//
// A RoutePoint refers to the visited entity through PointRef, a tagged
// variant keyed by the reference kind. Points are numbered 1..N without gaps;
// numbering is repaired by services.Sequencer after every change.
package route
