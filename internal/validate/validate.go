// Package validate parses and range-checks raw client input lines.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/zkverify/internal/domain"
)

// Field identifies which input a raw line is being validated against.
type Field int

const (
	FieldAge Field = iota
	FieldBMI
)

// String returns the client-facing name of the field.
func (f Field) String() string {
	if f == FieldBMI {
		return "BMI"
	}
	return "age"
}

// Bounds returns the inclusive range for the field.
func (f Field) Bounds() (min, max int) {
	if f == FieldBMI {
		return domain.MinBMI, domain.MaxBMI
	}
	return domain.MinAge, domain.MaxAge
}

// ErrorKind classifies a validation failure.
type ErrorKind int

const (
	NotANumber ErrorKind = iota
	OutOfRange
)

// Error describes why a raw line was rejected. It is never fatal; the
// protocol layer turns it into a retry prompt.
type Error struct {
	Kind  ErrorKind
	Field Field
	Min   int
	Max   int
}

func (e *Error) Error() string {
	if e.Kind == NotANumber {
		return fmt.Sprintf("%s is not a whole number", e.Field)
	}
	return fmt.Sprintf("%s out of range [%d,%d]", e.Field, e.Min, e.Max)
}

// UserMessage returns the text written back to the client before re-prompting.
func (e *Error) UserMessage() string {
	if e.Kind == NotANumber {
		return "Invalid input: please enter a whole number."
	}
	return fmt.Sprintf("Value out of range: expected %d-%d.", e.Min, e.Max)
}

// Parse accepts only a base-10 integer (surrounding whitespace tolerated)
// within the field's inclusive bounds.
func Parse(raw string, field Field) (int, error) {
	min, max := field.Bounds()

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &Error{Kind: NotANumber, Field: field, Min: min, Max: max}
	}

	if n < min || n > max {
		return 0, &Error{Kind: OutOfRange, Field: field, Min: min, Max: max}
	}

	return n, nil
}
