package types

import (
	"errors"
	"fmt"
)

// Error taxonomy for the knowledge-graph engine. Each category has a
// sentinel usable with errors.Is plus a typed error carrying the
// offending key or field.
var (
	// ErrNotFound indicates no current version exists for the logical key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey indicates a current version already exists for the key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDanglingEndpoint indicates a relation endpoint without a current entity.
	ErrDanglingEndpoint = errors.New("dangling endpoint")

	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream indicates a backing-store or embedding-service failure.
	ErrUpstream = errors.New("upstream failure")

	// ErrInconsistentState indicates an invariant violation observed at
	// read time, e.g. two current versions for one key. It is surfaced,
	// never silently repaired.
	ErrInconsistentState = errors.New("inconsistent state")
)

// NotFoundError names the missing key.
type NotFoundError struct {
	Kind string // "entity" or "relation"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q %v", e.Kind, e.Key, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	_, ok := target.(*NotFoundError)
	return ok
}

// NewNotFoundError creates a NotFoundError for the given kind and key.
func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

// DuplicateKeyError names the key that already has a current version.
type DuplicateKeyError struct {
	Kind string
	Key  string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s %q already has a current version: %v", e.Kind, e.Key, ErrDuplicateKey)
}

func (e *DuplicateKeyError) Is(target error) bool {
	if target == ErrDuplicateKey {
		return true
	}
	_, ok := target.(*DuplicateKeyError)
	return ok
}

// NewDuplicateKeyError creates a DuplicateKeyError for the given kind and key.
func NewDuplicateKeyError(kind, key string) *DuplicateKeyError {
	return &DuplicateKeyError{Kind: kind, Key: key}
}

// DanglingEndpointError names the relation and the endpoint that is not current.
type DanglingEndpointError struct {
	Relation RelationKey
	Endpoint string
}

func (e *DanglingEndpointError) Error() string {
	return fmt.Sprintf("relation %s: endpoint %q has no current entity: %v", e.Relation, e.Endpoint, ErrDanglingEndpoint)
}

func (e *DanglingEndpointError) Is(target error) bool {
	if target == ErrDanglingEndpoint {
		return true
	}
	_, ok := target.(*DanglingEndpointError)
	return ok
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	_, ok := target.(*ValidationError)
	return ok
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UpstreamError wraps a backing-store or embedding-service failure with
// the operation and key the caller needs to retry.
type UpstreamError struct {
	Op  string
	Key string
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s(%s): %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	if target == ErrUpstream {
		return true
	}
	_, ok := target.(*UpstreamError)
	return ok
}

// NewUpstreamError wraps err with operation and key context.
func NewUpstreamError(op, key string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Key: key, Err: err}
}

// InconsistentStateError reports an invariant violation found at read time.
type InconsistentStateError struct {
	Kind    string
	Key     string
	Message string
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("%s %q: %s: %v", e.Kind, e.Key, e.Message, ErrInconsistentState)
}

func (e *InconsistentStateError) Is(target error) bool {
	if target == ErrInconsistentState {
		return true
	}
	_, ok := target.(*InconsistentStateError)
	return ok
}
