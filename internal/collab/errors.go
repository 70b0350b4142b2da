package collab

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound is returned when the addressed room does not exist.
	ErrRoomNotFound = errors.New("collab: room not found")
	// ErrCompanyMismatch is returned when the caller's company does not
	// own the room.
	ErrCompanyMismatch = errors.New("collab: company mismatch")
	// ErrRoomFull is returned when a join would exceed the room's
	// capacity.
	ErrRoomFull = errors.New("collab: room full")
)

// ValidationError reports invalid input to a session operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("collab: invalid %s: %s", e.Field, e.Reason)
}
