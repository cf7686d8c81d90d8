package apperr

import "github.com/google/uuid"

// CheckID rejects identifiers that are not well-formed UUIDs.
func CheckID(op, field, id string) error {
	if id == "" {
		return Validation(op, field+" is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return Validation(op, "invalid "+field)
	}
	return nil
}
