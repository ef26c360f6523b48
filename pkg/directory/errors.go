package directory

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable matches errors where the directory could not be reached
	// or its answer could not be read.
	ErrUnavailable = errors.New("directory unavailable")

	// ErrRejected matches errors where the directory answered with a non-2xx status.
	ErrRejected = errors.New("directory rejected request")
)

type UnavailableError struct {
	Method string
	URL    string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

type RejectedError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }
