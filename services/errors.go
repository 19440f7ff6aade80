package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEventNotFound    = errors.New("event not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrVersionConflict  = errors.New("event was modified by someone else")
	ErrEventFull        = errors.New("event has reached its guest limit")
	ErrGuestNotFound    = errors.New("guest not found")
	ErrPasswordRequired = errors.New("event password required")
	ErrWrongPassword    = errors.New("wrong event password")
	ErrValidation       = errors.New("validation failed")
)

// ValidationError lists offending fields. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}
