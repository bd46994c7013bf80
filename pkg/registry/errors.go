package registry

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrDuplicateIMSI      = errors.New("imsi already registered")
	ErrInvalidHeader      = errors.New("invalid csv header")
)

// InvalidIMSIError reports an IMSI that breaks the numbering rule.
type InvalidIMSIError struct {
	IMSI   string
	Reason string
}

func (e *InvalidIMSIError) Error() string {
	return fmt.Sprintf("invalid imsi %q: %s", e.IMSI, e.Reason)
}

// ValidationError reports a subscriber field that is missing or malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ImportError names the CSV data row (1-based, header excluded) that stopped an
// import.
type ImportError struct {
	Row int
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}
