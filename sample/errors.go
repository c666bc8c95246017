package sample

import (
	"errors"
	"fmt"
)

var (
	// ErrDomainMismatch is returned when two sets that must share a domain
	// do not.
	ErrDomainMismatch = errors.New("sample: domains do not match")

	// ErrNoValues is returned when an operation needs sample values that
	// have not been set.
	ErrNoValues = errors.New("sample: no values set")

	// ErrNoDomain is returned when an operation needs a domain that has
	// not been set.
	ErrNoDomain = errors.New("sample: no domain set")
)

// ErrLengthMismatch is returned when two per-sample arrays disagree on the
// number of samples.
type ErrLengthMismatch struct {
	Name      string
	OtherName string
	Len       int
	OtherLen  int
}

func (e *ErrLengthMismatch) Error() string {
	return fmt.Sprintf("sample: length mismatch: %s has %d entries, %s has %d",
		e.Name, e.Len, e.OtherName, e.OtherLen)
}

// ErrDimensionMismatch is returned when a coordinate array has the wrong
// trailing dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("sample: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrMissingPrerequisite is returned when an operation needs state that has
// not been prepared, such as an emulated set or an estimated radius array.
type ErrMissingPrerequisite struct {
	What string
}

func (e *ErrMissingPrerequisite) Error() string {
	return fmt.Sprintf("sample: missing prerequisite: %s", e.What)
}

// ErrUnsupportedForVariant is returned when an operation is not defined for
// a sample-set geometry, such as appending values to a fixed-region set.
type ErrUnsupportedForVariant struct {
	Op      string
	Variant string
}

func (e *ErrUnsupportedForVariant) Error() string {
	return fmt.Sprintf("sample: %s is not supported for %s sets", e.Op, e.Variant)
}

// ErrUnsupportedMode is returned for an unknown aggregation mode.
type ErrUnsupportedMode struct {
	Mode string
}

func (e *ErrUnsupportedMode) Error() string {
	return fmt.Sprintf("sample: unsupported aggregation mode %q", e.Mode)
}
