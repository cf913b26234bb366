// Package ids generates the short, opaque, collision-free identifiers
// used as entity primary keys.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a short unique string suitable as an entity id: a UUIDv4
// with the hyphens stripped, so it fits the 32-character id column both
// engines declare (SQLite TEXT, MySQL VARCHAR(32)). Rows never write
// one of these twice: the underlying generator is collision-free within
// a table for all practical purposes.
func New() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
