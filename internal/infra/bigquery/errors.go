package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// QueryErrorKind classifies query failures.
type QueryErrorKind string

const (
	ErrPermissionDenied QueryErrorKind = "permission_denied"
	ErrNotFound         QueryErrorKind = "not_found"
	ErrUnauthenticated  QueryErrorKind = "unauthenticated"
	ErrDeadline         QueryErrorKind = "deadline_exceeded"
	ErrUnknown          QueryErrorKind = "unknown"
)

var hints = map[QueryErrorKind]string{
	ErrPermissionDenied: "Check that your account has read access to the revenue dataset.",
	ErrNotFound:         "Check the project and dataset names in the configuration.",
	ErrUnauthenticated:  "Check your credentials (gcloud auth application-default login).",
	ErrDeadline:         "The query took too long. Try a shorter date range.",
	ErrUnknown:          "Unknown error.",
}

// QueryError is a query failure with a hint for the user.
type QueryError struct {
	Kind QueryErrorKind
	Hint string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v. %s", e.Kind, e.Err, e.Hint)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// translate wraps err in a *QueryError. nil stays nil.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	kind := classify(err)
	return &QueryError{Kind: kind, Hint: hints[kind], Err: err}
}

func classify(err error) QueryErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrDeadline
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusForbidden:
			return ErrPermissionDenied
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized:
			return ErrUnauthenticated
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return ErrDeadline
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "could not find default credentials"),
		strings.Contains(msg, "invalid_grant"),
		strings.Contains(msg, "invalid credentials"):
		return ErrUnauthenticated
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "permission denied"):
		return ErrPermissionDenied
	}
	return ErrUnknown
}
