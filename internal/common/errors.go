// Package common holds the error kinds shared by the stores, the services
// and the HTTP layer. Callers wrap them with %w and test them with errors.Is.
package common

import "errors"

var (

	// repository specific errors
	ErrNotFound = errors.New("not found")

	// input errors
	ErrValidation = errors.New("validation error")

	// uniqueness errors
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicatePhone    = errors.New("phone number already exists")

	// auth-specific errors
	ErrAuthFailure     = errors.New("invalid username or password")
	ErrUnauthenticated = errors.New("not logged in")
	ErrUnauthorized    = errors.New("unauthorized")

	// spreadsheet errors
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrExportUnavailable = errors.New("export unavailable")
)
