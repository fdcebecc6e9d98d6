package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures crossing component boundaries.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindPlatform       Kind = "platform"
	KindStore          Kind = "store"
	KindPartialFailure Kind = "partial_failure"
)

// Error is the classified error carried between the engine layers.
// Description holds the human readable part (for platform errors: the API description).
type Error struct {
	Kind        Kind
	Op          string
	Description string
	Err         error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Description: fmt.Sprintf(format, args...)}
}

func Platform(method, description string, err error) error {
	return &Error{Kind: KindPlatform, Op: method, Description: description, Err: err}
}

func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindStore, Op: op, Err: err}
}

func Partial(op, description string, err error) error {
	return &Error{Kind: KindPartialFailure, Op: op, Description: description, Err: err}
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf returns the outermost classified kind, or "" for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Description returns the outermost classified description, falling back to err.Error().
func Description(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Description != "" {
		return e.Description
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
