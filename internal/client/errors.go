package client

import (
	"fmt"
	"net/http"
)

// TransportError means no usable response came back: dial failures,
// timeouts, cancelled contexts and bodies that could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response. Message holds the server's own text
// when the body carried one.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return StatusMessage(e.StatusCode)
}

// HasMessage reports whether the server supplied its own error text.
func (e *ServerError) HasMessage() bool { return e.Message != "" }

// StatusMessage is the fallback text shown when a failed response has no
// error payload.
func StatusMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "the request was rejected as invalid"
	case http.StatusUnauthorized:
		return "your session has expired, please sign in again"
	case http.StatusForbidden:
		return "you do not have permission to perform this action"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with existing data"
	case http.StatusRequestEntityTooLarge:
		return "the uploaded file is too large"
	case http.StatusUnsupportedMediaType:
		return "the file type is not supported"
	case http.StatusUnprocessableEntity:
		return "the file could not be processed"
	case http.StatusServiceUnavailable:
		return "the server is busy, please try again shortly"
	}
	if code >= 500 {
		return "the server encountered an error, please try again later"
	}
	return fmt.Sprintf("request failed with status %d", code)
}
