// File: trace/errors.go
package trace

import "errors"

// Stable error classes for programmatic branching with errors.Is. Each
// surfaced error wraps one of these with a human-readable description.
var (
	// ErrMalformedEntry means a payload could not be decoded. The stream
	// is likely corrupt from that point on, so parsing aborts.
	ErrMalformedEntry = errors.New("malformed trace entry")

	// ErrIndeterminateSize means the entry type has no fixed layout and
	// must be decoded with the payload size taken from its header.
	ErrIndeterminateSize = errors.New("entry size cannot be determined statically")

	// ErrUnknownEntryType means the type tag has no registered codec.
	// The stream parser treats this as non-fatal and skips the payload.
	ErrUnknownEntryType = errors.New("unknown trace entry type")

	// ErrAddressNotFound means no loaded module section contains the
	// queried program counter. Profiling code treats this as "no debug
	// info", not as a failure.
	ErrAddressNotFound = errors.New("address not found in module map")

	// ErrEmptyTrace means no trace data was found where some was expected.
	ErrEmptyTrace = errors.New("execution trace is empty")
)
