package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues, like a trace referencing stacks it
// doesn't contain.
var ErrDataIntegrity = errors.New("data integrity error")

