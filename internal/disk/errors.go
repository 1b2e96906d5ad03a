package disk

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrMalformedResponse = errors.New("malformed response")

// NetworkError is returned when no HTTP response could be obtained, either
// because the failure was not retryable or because every retry failed too.
type NetworkError struct {
	Method   string
	Target   string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network failure after %d attempt(s): %v", e.Method, e.Target, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError carries an HTTP response code the operation does not accept.
type StatusError struct {
	Op   string
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Op, e.Path, e.Code, http.StatusText(e.Code))
}

// TransferError reports a failure while moving bytes through a signed link,
// as opposed to a failure to obtain the link itself.
type TransferError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: transfer failed: %v", e.Op, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, code int) bool {
	se, ok := errors.AsType[*StatusError](err)
	return ok && se.Code == code
}
