package idgen

import "github.com/google/uuid"

// NewFunc produces a new globally unique identifier. Tests stub it to get
// predictable names.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier as an opaque string.
func New() string { return NewFunc() }

// Short returns the first segment of a new identifier, enough uniqueness for
// a filename suffix while keeping names readable.
func Short() string {
	id := New()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
