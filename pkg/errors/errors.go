// Package errors gives every failure that crosses a package boundary a
// [Code], so the caller can tell an item-level problem from one that ends
// the run.
//
// Item-level codes are recovered where they occur: MISSING_REFERENCE skips
// the item, INVALID_GEOMETRY drops the glyph, FILTER_EMPTY skips the image
// and RENDER_FAILED fails one image while the batch continues. Any other
// code aborts the run.
//
//	err := errors.New(errors.ErrCodeMissingReference, "node %d not found", id)
//	if errors.Is(err, errors.ErrCodeMissingReference) {
//	    continue
//	}
//
//	return errors.Wrap(errors.ErrCodeIO, err, "read %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error. Codes are stable and appear in manifests and
// HTTP error bodies.
type Code string

const (
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeInvalidTable  Code = "INVALID_TABLE"

	ErrCodeMissingReference Code = "MISSING_REFERENCE"
	ErrCodeDuplicateID      Code = "DUPLICATE_ID"
	ErrCodeInvalidGeometry  Code = "INVALID_GEOMETRY"
	ErrCodeFilterEmpty      Code = "FILTER_EMPTY"

	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"
	ErrCodeIO           Code = "IO_ERROR"

	ErrCodeRender      Code = "RENDER_FAILED"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// itemLevel lists the codes that affect a single item or image.
var itemLevel = map[Code]bool{
	ErrCodeMissingReference: true,
	ErrCodeInvalidGeometry:  true,
	ErrCodeFilterEmpty:      true,
	ErrCodeRender:           true,
}

// Error carries a code, a message for people, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	s := string(e.Code) + ": " + e.Message
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns an error with code and a formatted message.
func New(code Code, format string, args ...any) *Error {
	return Wrap(code, nil, format, args...)
}

// Wrap is New with a cause; the cause stays reachable through errors.Is
// and errors.As of the standard library.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// asError finds the outermost *Error in err's chain.
func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode returns the code of the outermost *Error in err's chain, or ""
// when there is none.
func GetCode(err error) Code {
	if e, ok := asError(err); ok {
		return e.Code
	}
	return ""
}

// UserMessage drops the code prefix and the cause of coded errors. Plain
// errors are returned unchanged.
func UserMessage(err error) string {
	if e, ok := asError(err); ok {
		return e.Message
	}
	return err.Error()
}

// Recoverable reports whether err only affects a single item or image.
func Recoverable(err error) bool {
	return itemLevel[GetCode(err)]
}
