package nska

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat matches every *FormatError.
	ErrFormat = errors.New("nska: not a parseable plist")
	// ErrNotArchive matches every *NotArchiveError.
	ErrNotArchive = errors.New("nska: not an NSKeyedArchiver archive")
)

// FormatError reports input that is not a parseable property list, even after
// the single leading-junk repair retry.
type FormatError struct {
	Stage string // "parse", "reparse", "unwrap", "encode"
	Err   error
}

func formatErrf(stage string, err error) error {
	return &FormatError{Stage: stage, Err: err}
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("nska: %s: invalid plist", e.Stage)
	}
	return fmt.Sprintf("nska: %s: %v", e.Stage, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// NotArchiveError reports a well-formed plist that lacks the keyed archive
// structure ($top or $objects).
type NotArchiveError struct {
	Missing string
}

func (e *NotArchiveError) Error() string {
	return fmt.Sprintf("nska: %s element not found, not an NSKeyedArchiver archive?", e.Missing)
}

func (e *NotArchiveError) Is(target error) bool { return target == ErrNotArchive }

// ReferenceError reports a UID that indexes outside the record table.
type ReferenceError struct {
	UID uint64
	Len int
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("nska: uid %d out of range (table has %d records)", e.UID, e.Len)
}

// LiteralError reports a literal that could not be converted, such as a hex
// integer that overflows 64 bits.
type LiteralError struct {
	Literal string
	Err     error
}

func (e *LiteralError) Error() string {
	return fmt.Sprintf("nska: bad literal %q: %v", e.Literal, e.Err)
}

func (e *LiteralError) Unwrap() error { return e.Err }

// ValueError reports a value that the target representation cannot hold.
type ValueError struct {
	Kind Kind
	Msg  string
}

func valueErrf(kind Kind, format string, args ...any) error {
	return &ValueError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("nska: %s value: %s", e.Kind, e.Msg)
}

// BudgetError reports a traversal that exceeded Options.MaxDepth or
// Options.MaxNodes.
type BudgetError struct {
	Limit string
	Value int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("nska: %s budget of %d exceeded", e.Limit, e.Value)
}
