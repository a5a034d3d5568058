package models

import "github.com/google/uuid"

// ensureID assigns a random id when the caller left it unset, so inserts do
// not depend on a database-side uuid default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
