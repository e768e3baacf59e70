package session

import (
	"errors"
	"fmt"
)

// ErrConnectionLost resolves every request that was in flight when the
// socket died.
var ErrConnectionLost = errors.New("connection lost")

// ErrSuperseded resolves a waiter whose request was reissued before the
// first reply arrived. The newer caller gets the answer.
var ErrSuperseded = errors.New("request superseded")

// ConnectionError is a socket-level failure. It terminates the session
// and surfaces to all pending requests.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	if e.Cause == nil {
		return "connection error"
	}
	return "connection error: " + e.Cause.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

// ProtocolError is a malformed or undecodable frame. It is fatal to the
// connection: the stream cannot be trusted past it.
type ProtocolError struct {
	Cause error
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Cause.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// RequestError is a server-reported error for one request id. It resolves
// only that request; the connection stays up.
type RequestError struct {
	ReqID   int64
	Code    int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request %d: error %d: %s", e.ReqID, e.Code, e.Message)
}

// TimeoutError means the caller's deadline elapsed. The underlying
// subscription, if any, has been cancelled server-side.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return "timeout waiting for " + e.Op
}
