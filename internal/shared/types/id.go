package types

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ID is the generated primary key of every persisted entity.
type ID string

// NewID generates a new random ID
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses a string into an ID
func ParseID(s string) (ID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid ID: %w", err)
	}
	return ID(s), nil
}

func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty
func (id ID) IsZero() bool {
	return id == ""
}

// Value implements driver.Valuer so an empty ID is stored as NULL.
func (id ID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return string(id), nil
}

// Scan implements sql.Scanner.
func (id *ID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*id = ""
	case string:
		*id = ID(v)
	case []byte:
		*id = ID(string(v))
	case [16]byte:
		*id = ID(uuid.UUID(v).String())
	default:
		return fmt.Errorf("cannot scan %T into ID", value)
	}
	return nil
}
