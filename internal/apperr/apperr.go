// Package apperr holds the typed errors shared by the storage services.
// Callers match them with errors.As; the HTTP layer maps each to a status.
package apperr

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError lists rejected input fields
type ValidationError struct {
	Fields map[string]string
}

// Invalid builds a ValidationError for a single field
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records another rejected field
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// OrNil returns e when it holds at least one field
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError reports a missing referenced entity
type NotFoundError struct {
	Entity string
	ID     uint
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError
func NotFound(entity string, id uint) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// GeometryConflictError reports an overlap with an existing storage area
type GeometryConflictError struct {
	AreaID   uint
	AreaCode string
}

func (e *GeometryConflictError) Error() string {
	return fmt.Sprintf("area overlaps existing area %s (id %d)", e.AreaCode, e.AreaID)
}

// CapacityExceededError reports a placement that does not fit its area.
// Volumes are cubic metres.
type CapacityExceededError struct {
	AreaID    uint
	Remaining float64
	Requested float64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("insufficient capacity in area %d: remaining %.2f m³, requested %.2f m³",
		e.AreaID, e.Remaining, e.Requested)
}

// ConflictError reports an illegal state transition or a lost concurrent update
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Conflictf builds a ConflictError
func Conflictf(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ProcessError reports a solver that could not be started or exited non-zero.
// ExitCode is -1 when the process never ran.
type ProcessError struct {
	Diagnostic string
	ExitCode   int
}

func (e *ProcessError) Error() string {
	if e.ExitCode < 0 {
		return e.Diagnostic
	}
	return fmt.Sprintf("solver exited with code %d: %s", e.ExitCode, e.Diagnostic)
}

// JobFailedError is what callers of an optimization run see when the run
// ends in failure. Message is generic unless debug output is enabled; the
// underlying cause is always reachable through errors.Unwrap.
type JobFailedError struct {
	JobID   uint
	Message string
	Cause   error
}

func (e *JobFailedError) Error() string {
	return e.Message
}

func (e *JobFailedError) Unwrap() error {
	return e.Cause
}
