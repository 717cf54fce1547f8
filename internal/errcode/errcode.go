// Package errcode defines the stable error codes reported to connected UIs
// and classifies Go errors into them.
package errcode

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/auricle-dev/auricle/pkg/audio"
	"github.com/auricle-dev/auricle/pkg/realtime"
)

// Code is a stable machine-readable error identifier. The string values are
// part of the control protocol and must not change.
type Code string

const (
	DeviceError    Code = "device_error"
	ConnectionLost Code = "connection_lost"
	Timeout        Code = "timeout"
	InvalidJSON    Code = "invalid_json"
	MissingField   Code = "missing_field"
	InvalidValue   Code = "invalid_value"
	SessionExpired Code = "session_expired"
	InvalidAPIKey  Code = "invalid_api_key"
	UnknownError   Code = "unknown_error"
)

// Record is an error as reported over the control protocol.
type Record struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	// Recoverable tells the UI whether the orchestrator keeps running after
	// this error. Not serialized; it drives presentation, not protocol.
	Recoverable bool `json:"-"`
}

// New builds a Record with the recoverability implied by the code.
func New(code Code, message string) Record {
	return Record{Code: code, Message: message, Recoverable: recoverable(code)}
}

// recoverable reports whether the orchestrator continues after errors of this
// code. Device failures and bad credentials end the run; everything else is
// survivable.
func recoverable(code Code) bool {
	switch code {
	case DeviceError, InvalidAPIKey:
		return false
	default:
		return true
	}
}

// FromError classifies err into a Record. Unrecognized errors map to
// UnknownError so the protocol never emits an unlisted code.
func FromError(err error) Record {
	if err == nil {
		return Record{}
	}

	var devErr *audio.DeviceError
	switch {
	case errors.As(err, &devErr):
		return New(DeviceError, err.Error())
	case errors.Is(err, realtime.ErrInvalidAPIKey):
		return New(InvalidAPIKey, err.Error())
	case errors.Is(err, realtime.ErrConnectionLost),
		errors.Is(err, realtime.ErrSessionClosed):
		return New(ConnectionLost, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return New(Timeout, err.Error())
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return New(InvalidJSON, err.Error())
	}

	return New(UnknownError, err.Error())
}

// FromServerEvent classifies an error event received from the speech API.
// The hosted API's own codes pass through when they match the taxonomy;
// anything else becomes UnknownError with the server's message preserved.
func FromServerEvent(code, message string) Record {
	switch Code(code) {
	case SessionExpired, InvalidAPIKey, ConnectionLost, Timeout:
		return New(Code(code), message)
	default:
		return New(UnknownError, message)
	}
}
