package analyses

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotFailed      = errors.New("not in failed state")
	ErrCooldown       = errors.New("analysis ran recently")
	ErrEntityNotFound = errors.New("entity not found")
	ErrInFlight       = errors.New("analysis already in progress")
	ErrUnknownStep    = errors.New("unknown pipeline step")
	ErrTerminal       = errors.New("analysis already finished")
)

const (
	ErrorCodeNotFound    = "NOT_FOUND"
	ErrorCodeUpstream    = "UPSTREAM_ERROR"
	ErrorCodeEmptyResult = "EMPTY_RESULT"
	ErrorCodeParse       = "PARSE_ERROR"
	ErrorCodePersistence = "PERSISTENCE_ERROR"
	ErrorCodeInternal    = "INTERNAL_ERROR"
)

// NotFoundError reports a missing catalog entity.
type NotFoundError struct {
	EntityID string
	Err      error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("entity %s not found", e.EntityID) }
func (e *NotFoundError) Unwrap() error { return e.Err }
func (e *NotFoundError) Code() string  { return ErrorCodeNotFound }

// UpstreamError reports a failed search, AI or queue call.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + errString(e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }
func (e *UpstreamError) Code() string  { return ErrorCodeUpstream }

// EmptyResultError reports a step whose input or output was empty.
type EmptyResultError struct {
	Msg string
}

func (e *EmptyResultError) Error() string { return e.Msg }
func (e *EmptyResultError) Code() string  { return ErrorCodeEmptyResult }

// ParseError reports AI output that is not a usable JSON object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return errString(e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Code() string  { return ErrorCodeParse }

// PersistenceError reports a failed store write or read.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + errString(e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }
func (e *PersistenceError) Code() string  { return ErrorCodePersistence }

type coder interface {
	Code() string
}

func errorCode(err error) string {
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ErrorCodeInternal
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
