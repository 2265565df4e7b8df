// Package errs holds the typed errors shared by the domain, the use cases and
// the HTTP adapter.
//
// Each typed error unwraps to a sentinel (ErrObjectNotFound, ErrValueIsInvalid,
// ErrValueIsOutOfRange, ErrValueIsRequired, ErrVersionIsInvalid, ErrConflict),
// so callers classify failures with errors.Is and read details with errors.As.
// The HTTP adapter maps sentinels to status codes; ConflictError additionally
// tells clients whether the rejected mutation may be forced.
package errs
