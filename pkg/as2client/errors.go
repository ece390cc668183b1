package as2client

import "errors"

// Error kinds per spec.md §7 (not type names — each condition below maps to
// one of these sentinels, wrapped with context via fmt.Errorf("%w: ...")).
var (
	// ErrBuilderIncomplete is returned when verification recorded one or
	// more errors; the send never reaches the transport.
	ErrBuilderIncomplete = errors.New("builder verification found errors")
	// ErrCertificateInvalid is returned when the receiver AP certificate
	// check fails under the active certificate-check policy.
	ErrCertificateInvalid = errors.New("receiver certificate check failed")
	// ErrPayloadMalformed covers XML that does not parse, or a missing
	// business document when exactly one form was required.
	ErrPayloadMalformed = errors.New("business document payload is malformed or missing")
	// ErrKeyStoreIO covers an unreadable, unwritable, or wrong-password
	// key-store.
	ErrKeyStoreIO = errors.New("key store could not be read or written")
	// ErrTerminalStateReached is returned when a pipeline step is invoked
	// after the builder has already reached Completed or Failed.
	ErrTerminalStateReached = errors.New("builder has already reached a terminal state")
)
