// Package fault holds the closed set of error kinds the pipeline reacts to.
//
// Every failure a task can observe is classified as exactly one Kind:
//
//	Transient  - the resource is not there yet or is mid-write; retry next cycle
//	Integrity  - the persisted data has an unexpected shape or out-of-range value
//	Commit     - a decision was computed but its marker could not be created
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Transient Kind = iota + 1
	Integrity
	Commit
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Integrity:
		return "integrity"
	case Commit:
		return "commit"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Transientf(op, format string, args ...any) error {
	return &Error{Kind: Transient, Op: op, Err: fmt.Errorf(format, args...)}
}

func Integrityf(op, format string, args ...any) error {
	return &Error{Kind: Integrity, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first classified error in err's chain,
// or 0 when err is nil or unclassified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Fatal reports whether err must stop the task that observed it.
// Unclassified errors are treated as fatal.
func Fatal(err error) bool {
	return err != nil && KindOf(err) != Transient
}
