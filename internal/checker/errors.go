package checker

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyStarted = errors.New("checker already started")

	// returned by a worker that gave up its task because the run stopped
	// or the link was already settled
	errAbandoned = errors.New("task abandoned")
)

// StatusError reports a non-2xx answer to a fetch. 404 and 410 match
// ErrNotFound and are never retried.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && (e.Code == http.StatusNotFound || e.Code == http.StatusGone)
}

func checkStatusCode(code int) error {
	if isSuccess(code) {
		return nil
	}
	return &StatusError{Code: code}
}
