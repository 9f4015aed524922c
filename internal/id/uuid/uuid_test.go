// Package uuid includes tests for the session ID generator.
package uuid

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewSessionIDIsV7AndUnique(t *testing.T) {
	t.Parallel()

	g := New()
	first, err := g.NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID() error = %v", err)
	}
	second, err := g.NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID() error = %v", err)
	}
	if first == second {
		t.Fatal("expected distinct session ids")
	}
	if v := uuid.UUID(first).Version(); v != 7 {
		t.Fatalf("expected version 7, got %d", v)
	}
}

func TestNewSessionIDError(t *testing.T) {
	t.Parallel()

	boom := errors.New("entropy exhausted")
	g := &Generator{newV7: func() (uuid.UUID, error) { return uuid.Nil, boom }}
	if _, err := g.NewSessionID(); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
