package domain

import (
	"errors"
	"fmt"
)

// ErrBackendNotConfigured returned by remote operations when no backend is set up
var ErrBackendNotConfigured = errors.New("remote backend is not configured")

// DuplicateIDError insert with an id that is already present
type DuplicateIDError struct {
	Kind Kind
	ID   string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.ID)
}

// NotFoundError lookup or patch of an unknown id
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ReorderMismatchError reorder id list differs from the scope membership
type ReorderMismatchError struct {
	Kind   Kind
	Scope  string
	Reason string
}

func (e *ReorderMismatchError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("reorder %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("reorder %s in scope %q: %s", e.Kind, e.Scope, e.Reason)
}

// RemoteUnavailableError network or backend failure during mirror or hydrate
type RemoteUnavailableError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *RemoteUnavailableError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("remote %s: %s", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %s", e.Op, e.Kind, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error {
	return e.Err
}

// PlayerIntegrationError player script failed to load or the player reported an error
type PlayerIntegrationError struct {
	Reason string
	Err    error
}

func (e *PlayerIntegrationError) Error() string {
	if e.Err == nil {
		return "player: " + e.Reason
	}
	return fmt.Sprintf("player: %s: %s", e.Reason, e.Err)
}

func (e *PlayerIntegrationError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
