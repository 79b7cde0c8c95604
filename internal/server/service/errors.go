package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for the service layer. Handlers map them to HTTP responses
// with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
	ErrForbidden          = errors.New("you do not have permission to perform this action")
	ErrStorage            = errors.New("failed to store file")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrNotPDF             = errors.New("only PDF files are allowed")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAlreadyReviewed    = errors.New("article has already been reviewed")
	ErrSelfDemotion       = errors.New("you cannot demote yourself")
	ErrInvalidRoleChange  = errors.New("user role does not allow this change")
)

// ConflictError reports which unique field collided. It matches ErrConflict.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
