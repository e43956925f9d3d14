package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStorageUnavailable marks any persistence failure. Callers must treat it
	// as transient and never as an authentication decision.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
