package core

import "github.com/segmentio/ksuid"

// ID is a K-sortable unique identifier used to correlate executions across
// logs and metrics.
type ID string

// NewID generates a new random ID.
func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", err
	}
	return ID(id.String()), nil
}

// MustNewID generates a new ID, panicking on entropy failure.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}
