package app

import (
	"fmt"
	"net/http"
)

// DomainError is a service failure with a fixed HTTP mapping. Details, when
// set, is serialized into the error response body as-is.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badRequest(code, message string) *DomainError {
	return &DomainError{Status: http.StatusBadRequest, Code: code, Message: message}
}

func conflict(code, message string, details any) *DomainError {
	return &DomainError{Status: http.StatusConflict, Code: code, Message: message, Details: details}
}
