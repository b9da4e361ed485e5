package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	SeriesID ID
	RunID    ID
)

func (id SeriesID) String() string { return ID(id).String() }
func (id RunID) String() string    { return ID(id).String() }

// NewSeriesID creates a fresh series identifier
func NewSeriesID() SeriesID { return SeriesID(NewID()) }

// NewRunID creates a fresh run identifier
func NewRunID() RunID { return RunID(NewID()) }

// ParseSeriesID parses a string into SeriesID
func ParseSeriesID(s string) (SeriesID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("series ID cannot be empty")
	}
	return SeriesID(s), nil
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}
