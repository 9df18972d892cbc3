package constant

import "errors"

// Field bus failures. The poller recovers from these locally.
var (
	ErrConnection = errors.New("unable to connect to device")
	ErrIOTimeout  = errors.New("device io timeout")
	ErrProtocol   = errors.New("malformed device response")
)

var ErrStateCorruption = errors.New("state document corrupted")

// Action failures, reported back to the caller.
var (
	ErrUnknownDevice     = errors.New("unknown device")
	ErrUnknownAction     = errors.New("unknown action")
	ErrNotReady          = errors.New("device not ready for action")
	ErrReadOnlyWrite     = errors.New("variable is read only")
	ErrVariableNotFound  = errors.New("variable not found")
	ErrDeviceUnavailable = errors.New("device not connected")
)

var ErrInvalidValue = errors.New("invalid value for variable")
