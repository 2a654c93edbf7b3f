package performance

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrSequence        = errors.New("decision out of sequence")
	ErrInvariant       = errors.New("invariant violation")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

// ValidationError carries every field-level problem found by a command, keyed by field path.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func invalidField(path, message string) *ValidationError {
	return newValidationError(map[string]string{path: message})
}

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for path := range e.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		parts = append(parts, path+": "+e.Fields[path])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SequenceError reports a decision recorded against a level other than the one awaiting a decision.
type SequenceError struct {
	Expected int
	Got      int
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("decision for level %d out of sequence, level %d is pending", e.Got, e.Expected)
}

func (e *SequenceError) Is(target error) bool {
	return target == ErrSequence
}

type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Reason
}

func (e *InvariantViolation) Is(target error) bool {
	return target == ErrInvariant
}

func violation(format string, args ...any) *InvariantViolation {
	return &InvariantViolation{Reason: fmt.Sprintf(format, args...)}
}
