package types

import (
	"errors"
	"fmt"
)

// Error kinds shared by every collaborator client.
var (
	ErrNotConfigured     = errors.New("not configured")
	ErrAuth              = errors.New("authentication failed")
	ErrNotFound          = errors.New("not found")
	ErrBadRequest        = errors.New("bad request")
	ErrTimeout           = errors.New("timeout")
	ErrTransport         = errors.New("transport error")
	ErrMalformedResponse = errors.New("malformed response")
)

// CollaboratorError carries a diagnostic and a remediation hint for a failed
// call to an external service.
type CollaboratorError struct {
	Service string
	Kind    error
	Status  int
	Detail  string
	Remedy  string
}

func (e *CollaboratorError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Service, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Remedy != "" {
		msg += ". " + e.Remedy
	}
	return msg
}

func (e *CollaboratorError) Unwrap() error { return e.Kind }

// NewCollaboratorError is a small constructor used by the HTTP clients.
func NewCollaboratorError(service string, kind error, status int, detail, remedy string) *CollaboratorError {
	return &CollaboratorError{Service: service, Kind: kind, Status: status, Detail: detail, Remedy: remedy}
}

// KindForStatus maps an HTTP status to an error kind.
func KindForStatus(status int) error {
	switch {
	case status == 401 || status == 403:
		return ErrAuth
	case status == 404:
		return ErrNotFound
	case status == 408 || status == 504:
		return ErrTimeout
	case status >= 400 && status < 500:
		return ErrBadRequest
	default:
		return ErrTransport
	}
}
