// Package kernel holds the value objects shared by every aggregate of the
// route optimisation domain: identifiers, geographic points and time windows.
//
// Values are immutable and validated on construction. A zero value fails
// Validate, so values restored from storage or received from collaborators
// must go through the constructors in this package.
package kernel
