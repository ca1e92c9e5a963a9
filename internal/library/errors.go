package library

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrService is matched by every error returned from the library service,
// whether an HTTP failure, a rejected write, or an unreadable response.
var ErrService = errors.New("library service error")

// ServiceError describes a failed call to the Zotero Web API.
type ServiceError struct {
	Op         string // e.g. "create item", "list collections"
	StatusCode int    // HTTP status, or the per-object code of a failed write
	Message    string
	Err        error // underlying transport or decode error, if any
}

func (e *ServiceError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("zotero %s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("zotero %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("zotero %s: status %d", e.Op, e.StatusCode)
	}
}

// Is lets errors.Is(err, ErrService) match any ServiceError.
func (e *ServiceError) Is(target error) bool {
	return target == ErrService
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is an authentication or permission failure.
func IsAuthError(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsNotFound reports whether err means the library, item, or collection
// does not exist.
func IsNotFound(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound
	}
	return false
}
