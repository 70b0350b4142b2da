package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ValidateRoomID validates a room identifier (entityType:entityId).
func ValidateRoomID(id string) error {
	if len(id) == 0 {
		return errors.New("room ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("room ID exceeds maximum length")
	}
	if !strings.Contains(id, ":") {
		return errors.New("invalid room ID format")
	}
	return nil
}

// ValidateEntityID validates an entity identifier.
func ValidateEntityID(id string) error {
	if len(id) == 0 {
		return errors.New("entity ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("entity ID exceeds maximum length")
	}
	return nil
}

// ValidateCompanyID validates a company ID.
func ValidateCompanyID(id string) error {
	if len(id) == 0 {
		return errors.New("company ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("company ID exceeds maximum length")
	}
	return nil
}

// ValidateTitle validates an event title.
func ValidateTitle(title string) error {
	if len(title) > 256 {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

// ValidateFieldName validates an update's field name.
func ValidateFieldName(name string) error {
	if len(name) > 128 {
		return errors.New("field name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("field name must be valid UTF-8")
	}
	return nil
}
