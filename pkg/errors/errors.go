// Package errors provides structured error handling for tripflow.
//
// Every step-level failure carries an ErrorType (the kind), the operation
// that produced it and an optional cause. Row-level data quality problems
// are never errors; they are counted by the validator.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"syscall"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound means the remote source has no file for the work unit
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeCorruptSource means a raw file could not be decoded
	ErrorTypeCorruptSource ErrorType = "corrupt_source"
	// ErrorTypeTransport represents network and protocol failures
	ErrorTypeTransport ErrorType = "transport_failure"

	// ErrorTypePermission means the target location is not writable
	ErrorTypePermission ErrorType = "permission_denied"
	// ErrorTypeNoSpace means the target filesystem is full
	ErrorTypeNoSpace ErrorType = "no_space"
	// ErrorTypeEncode represents columnar serialization failures
	ErrorTypeEncode ErrorType = "encode_failure"
	// ErrorTypeIO represents filesystem failures not covered above
	ErrorTypeIO ErrorType = "io_failure"

	// ErrorTypeInvalidInput represents a rejected work unit or argument
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	// ErrorTypeCanceled means the caller abandoned the run
	ErrorTypeCanceled ErrorType = "canceled"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypePublish represents object storage mirror failures
	ErrorTypePublish ErrorType = "publish_failure"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Op names the pipeline step an error came from.
type Op string

const (
	OpFetch   Op = "fetch"
	OpWrite   Op = "write"
	OpPublish Op = "publish"
	OpConfig  Op = "config"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      Op
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := string(e.Type)
	if e.Op != "" {
		prefix = string(e.Op) + " " + prefix
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a format string.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Op:      existingErr.Op,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Fetch builds a fetch-step error.
func Fetch(errType ErrorType, message string, cause error) *Error {
	return &Error{Type: errType, Op: OpFetch, Message: message, Cause: cause, Stack: captureStack(2)}
}

// Write builds a write-step error.
func Write(errType ErrorType, message string, cause error) *Error {
	return &Error{Type: errType, Op: OpWrite, Message: message, Cause: cause, Stack: captureStack(2)}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the kind of err, or ErrorTypeInternal for foreign errors.
// A nil error has no type.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// IsFetchError reports whether err was raised by the fetch step.
func IsFetchError(err error) bool {
	return opOf(err) == OpFetch
}

// IsWriteError reports whether err was raised by the write step.
func IsWriteError(err error) bool {
	return opOf(err) == OpWrite
}

func opOf(err error) Op {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Op
}

// ClassifyFS maps a filesystem error onto the write-side taxonomy.
func ClassifyFS(err error) ErrorType {
	switch {
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		return ErrorTypePermission
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return ErrorTypeNoSpace
	default:
		return ErrorTypeIO
	}
}

// Is, As and Join re-export the standard library helpers so callers can
// import a single errors package.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
