// Package oscerr defines the typed error values returned by the online
// schema change engine so callers can distinguish a bad precondition from
// a transient driver error without parsing message text.
package oscerr

import "fmt"

// Kind classifies why an operation failed.
type Kind string

const (
	// KindPrecondition means the table or config didn't satisfy a
	// requirement checked before any write happened (no PK, ambiguous
	// shadow name, unsupported column type).
	KindPrecondition Kind = "precondition"
	// KindDriver wraps an error returned directly by the MySQL driver.
	KindDriver Kind = "driver"
	// KindContention means a lock-wait timeout or similar retryable
	// contention was hit and retries were exhausted.
	KindContention Kind = "contention"
	// KindMirroring means entangler setup or teardown failed.
	KindMirroring Kind = "mirroring"
	// KindCopy means the chunked backfill failed mid-copy.
	KindCopy Kind = "copy"
)

// Phase identifies which step of a migration produced the error.
type Phase string

const (
	PhaseShadowCreate    Phase = "shadow-create"
	PhaseMigrateCallback Phase = "migrate-callback"
	PhaseEntangle        Phase = "entangle"
	PhaseChunk           Phase = "chunk"
	PhaseSwitch          Phase = "switch"
)

// Error is the error type returned by every internal/osc/* package.
// It carries enough context for an operator to know which table and
// which phase failed without re-parsing the wrapped driver error.
type Error struct {
	Table string
	Phase Phase
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: table %s: phase %s: %v", e.Kind, e.Table, e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap builds an *Error, leaving Err untouched if it is already nil.
func Wrap(table string, phase Phase, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Table: table, Phase: phase, Kind: kind, Err: err}
}
