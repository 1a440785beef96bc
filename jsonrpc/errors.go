package jsonrpc

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard JSON-RPC error codes plus the gateway's authorization codes
const (
	CodeParseError      = -32700
	CodeInvalidRequest  = -32600
	CodeMethodNotFound  = -32601
	CodeInvalidParams   = -32602
	CodeInternalError   = -32603
	CodeUnauthenticated = -32001
	CodeUnauthorized    = -32002
)

// Error is a JSON-RPC error object. It doubles as a Go error so components
// can raise it directly and transports can recover it with errors.As.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// HTTPStatus is the status code the gateway answers with for this error
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeParseError, CodeInvalidRequest, CodeInvalidParams:
		return http.StatusBadRequest
	case CodeMethodNotFound:
		return http.StatusNotFound
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// NewError builds an error with a formatted message
func NewError(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func ParseError(format string, args ...interface{}) *Error {
	return NewError(CodeParseError, format, args...)
}

func InvalidRequest(format string, args ...interface{}) *Error {
	return NewError(CodeInvalidRequest, format, args...)
}

func MethodNotFound(format string, args ...interface{}) *Error {
	return NewError(CodeMethodNotFound, format, args...)
}

func InvalidParams(format string, args ...interface{}) *Error {
	return NewError(CodeInvalidParams, format, args...)
}

func InternalError(format string, args ...interface{}) *Error {
	return NewError(CodeInternalError, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return NewError(CodeUnauthorized, format, args...)
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return NewError(CodeUnauthenticated, format, args...)
}

// AsError returns err as a JSON-RPC error. Errors that are not already one
// become InternalError carrying err's message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

// IsCode reports whether err carries the given JSON-RPC code
func IsCode(err error, code int) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}
