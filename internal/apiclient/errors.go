package apiclient

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

const genericFailure = "request failed"

// TransportError means no usable response was obtained: DNS, refused
// connection, timeout, cancellation, or a body that is not an envelope.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ApplicationError means the backend answered with success=false.
type ApplicationError struct {
	Status  int
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return genericFailure
	}
	return e.Message
}

func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

func AsApplication(err error) (*ApplicationError, bool) {
	var target *ApplicationError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsUnauthorized reports whether the backend rejected the session. A 403 is
// a refused operation on a live session and does not count.
func IsUnauthorized(err error) bool {
	appErr, ok := AsApplication(err)
	return ok && appErr.Status == http.StatusUnauthorized
}

// UserMessage is the text shown to people for a failed call.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := AsApplication(err); ok {
		return appErr.Error()
	}
	if IsTransport(err) {
		return "service unavailable"
	}
	return genericFailure
}
