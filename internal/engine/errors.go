package engine

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("dataset not found")

// ConnectError reports a source that could not be registered.
type ConnectError struct {
	Name   string
	Source string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %q from %s: %v", e.Name, e.Source, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// NotFoundError reports a dataset name with no registration.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dataset %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// QueryError carries the engine's diagnostic for a failed statement.
type QueryError struct {
	Query string
	Msg   string
}

func (e *QueryError) Error() string {
	return "query failed: " + e.Msg
}

func queryError(query string, err error) error {
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Query: query, Msg: err.Error()}
}
