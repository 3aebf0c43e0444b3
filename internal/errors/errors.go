package errors

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Common error types for the proxy
var (
	// Token errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenUnavailable = errors.New("token unavailable")
	ErrUnsupportedGrant = errors.New("unsupported grant type")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidState   = errors.New("invalid or expired state")

	// Upstream errors
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// General errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UpstreamError carries an upstream HTTP failure so it can be relayed to the
// frontend with the original status, body and content type.
type UpstreamError struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// UpstreamErrorFrom extracts the upstream response from err. Token endpoint
// failures surface from x/oauth2 as *oauth2.RetrieveError and are converted.
func UpstreamErrorFrom(err error) (*UpstreamError, bool) {
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return upstreamErr, true
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &UpstreamError{
			StatusCode:  retrieveErr.Response.StatusCode,
			ContentType: retrieveErr.Response.Header.Get("Content-Type"),
			Body:        retrieveErr.Body,
		}, true
	}
	return nil, false
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
