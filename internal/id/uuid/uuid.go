// Package uuid issues crawl session identifiers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUID v7 session IDs.
type Generator struct {
	newV7 func() (uuid.UUID, error)
}

// New creates a new Generator.
func New() *Generator {
	return &Generator{newV7: uuid.NewV7}
}

// NewSessionID returns a fresh session ID in the binary form carried by
// progress events.
func (g *Generator) NewSessionID() ([16]byte, error) {
	id, err := g.newV7()
	if err != nil {
		return [16]byte{}, fmt.Errorf("generate session id: %w", err)
	}
	return id, nil
}
