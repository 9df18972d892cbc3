package apis

import (
	"errors"
)

const (
	// HTTP Request Fields
	RequestID = "X-Request-Id"

	// Self-defined Fields
	Device = "device"
	Action = "action"
)

// Response status values of the front end contract.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	ErrInternal     = errors.New("internal error")
	ErrInvalidValue = errors.New("invalid value")
)
