package domain

import "fmt"

// ResolutionError means an item's subscriber reference did not resolve to an
// active subscription, or the item itself was malformed.
type ResolutionError struct {
	Reference string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Reference, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed or timed out store operation for one item.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// EmissionError wraps a failed event publish. It is logged and counted but
// never returned to ingestion callers.
type EmissionError struct {
	Event string
	Err   error
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("emit %s: %v", e.Event, e.Err)
}

func (e *EmissionError) Unwrap() error { return e.Err }
