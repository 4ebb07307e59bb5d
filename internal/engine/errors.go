package engine

import "fmt"

// ValidationError rejects an intent with a field-level message. Recoverable;
// nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// DanglingReferenceError means an entity vanished mid-flow. The triggering
// record is left unmodified; no retry is attempted.
type DanglingReferenceError struct {
	Kind string
	ID   string
}

func (e DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s %s no longer exists", e.Kind, e.ID)
}
