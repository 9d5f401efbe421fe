package core

import "github.com/google/uuid"

// NewID generates an opaque unique identifier, used anywhere a
// component needs an event/task/node id without depending directly on
// the uuid package (event log, checkpoint, session, AC tree).
func NewID() string {
	return uuid.NewString()
}
