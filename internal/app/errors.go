package app

import (
	"fmt"
	"net/http"
)

// DomainError is the only error shape the HTTP layer renders verbatim.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
	// Err is the underlying cause, if any. It is never sent to clients.
	Err error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func upstreamError(err error) *DomainError {
	return &DomainError{
		Status:  http.StatusInternalServerError,
		Code:    "UPSTREAM_FETCH_FAILED",
		Message: "Report generation failed: " + err.Error(),
		Err:     err,
	}
}
