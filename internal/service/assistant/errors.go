package assistant

import (
	"fmt"
)

// UnreadableBody stands in for a response body that could not be read.
const UnreadableBody = "<unreadable response body>"

// ConnectivityError means the request never produced a response.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("backend unreachable: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// DecodeError means the response body was not a JSON object.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("backend response is not a JSON object: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
