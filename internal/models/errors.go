package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories reported while loading,
// correcting and saving datasets.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindParse
	KindGeometryMismatch
	KindDtypeMismatch
	KindOutputCollision
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindParse:
		return "parse error"
	case KindGeometryMismatch:
		return "geometry mismatch"
	case KindDtypeMismatch:
		return "dtype mismatch"
	case KindOutputCollision:
		return "output collision"
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Sentinels for errors.Is; any *Error with the same Kind matches.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrParse            = &Error{Kind: KindParse}
	ErrGeometryMismatch = &Error{Kind: KindGeometryMismatch}
	ErrDtypeMismatch    = &Error{Kind: KindDtypeMismatch}
	ErrOutputCollision  = &Error{Kind: KindOutputCollision}
)

// Error carries the structured context of a failure
type Error struct {
	Kind ErrorKind

	// Path is the file the failure refers to, if any
	Path string

	// Attribute names the header attribute involved, if any
	Attribute string

	// Got and Want describe mismatched values (dimensions, dtypes)
	Got  string
	Want string

	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Attribute != "" {
		msg += " [" + e.Attribute + "]"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Got != "" || e.Want != "" {
		msg += fmt.Sprintf(" (got %s, want %s)", e.Got, e.Want)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func NotFound(path string, err error) *Error {
	return &Error{Kind: KindNotFound, Path: path, Err: err}
}

func ParseErrorf(path, attr, format string, args ...interface{}) *Error {
	return &Error{Kind: KindParse, Path: path, Attribute: attr, Detail: fmt.Sprintf(format, args...)}
}

func GeometryMismatch(path string, got, want [3]int) *Error {
	return &Error{
		Kind:   KindGeometryMismatch,
		Path:   path,
		Detail: "dataset dimensions do not match the scan parameters",
		Got:    fmt.Sprintf("%dx%dx%d", got[0], got[1], got[2]),
		Want:   fmt.Sprintf("%dx%dx%d", want[0], want[1], want[2]),
	}
}

func DtypeMismatch(path, got, want string) *Error {
	return &Error{
		Kind:   KindDtypeMismatch,
		Path:   path,
		Detail: "voxel array datatype no longer matches the header datatype",
		Got:    got,
		Want:   want,
	}
}

func OutputCollision(path string) *Error {
	return &Error{Kind: KindOutputCollision, Path: path, Detail: "refusing to overwrite an existing dataset"}
}
