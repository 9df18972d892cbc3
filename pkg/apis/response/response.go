package response

import (
	"fmt"
	pkgerrors "github.com/pkg/errors"
)

// responseError carries the code and the operator facing message of a failed
// request. The cause is kept for logs and errors.Is.
type responseError struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
	Err     error   `json:"-"`
}

func (re *responseError) Error() string {
	if re == nil {
		return ""
	}
	if re.Err == nil {
		return fmt.Sprintf("%d: %s", re.Code, re.Message)
	}
	return fmt.Sprintf("%d: %s: %v", re.Code, re.Message, re.Err)
}

func (re *responseError) Unwrap() error {
	return re.Err
}

func asResponseError(err error) (*responseError, bool) {
	var re *responseError
	if err == nil || !pkgerrors.As(err, &re) {
		return nil, false
	}
	return re, true
}

// Code returns 0 for errors that were not built by this package.
func Code(err error) ErrCode {
	if re, ok := asResponseError(err); ok {
		return re.Code
	}
	return 0
}

// Message returns the text shown to the operator for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if re, ok := asResponseError(err); ok {
		return re.Message
	}
	return err.Error()
}

func generateErrorWrapper(code ErrCode, err error, s ...interface{}) *responseError {
	return &responseError{
		Code:    code,
		Message: fmt.Sprintf(errors[code], s...),
		Err:     err,
	}
}
