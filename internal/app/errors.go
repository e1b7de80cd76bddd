package app

import (
	"errors"
	"fmt"

	"lectern/api/internal/doc"
	"lectern/api/internal/store"
)

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

func notFound(message string) *DomainError {
	return &DomainError{Status: 404, Code: "NOT_FOUND", Message: message}
}

func badRequest(message string) *DomainError {
	return &DomainError{Status: 400, Code: "BAD_REQUEST", Message: message}
}

// toDomain maps internal failures onto the HTTP error taxonomy: missing
// documents are 404, corrupted reference chains are 500, everything else
// stays a plain 500.
func toDomain(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, store.ErrNotFound) {
		return notFound("Document not found")
	}
	if errors.Is(err, doc.ErrIntegrity) {
		return &DomainError{Status: 500, Code: "INTEGRITY_ERROR", Message: "Document graph integrity violation"}
	}
	return &DomainError{Status: 500, Code: "INTERNAL_ERROR", Message: "Internal error"}
}
