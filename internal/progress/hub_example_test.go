package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type exampleCountingSink struct {
	stored int
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	for _, evt := range batch {
		if evt.Stage == StageProfileStored {
			s.stored++
		}
	}
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit demonstrates emitting events and flushing via Close.
func ExampleHub_Emit() {
	sink := &exampleCountingSink{}
	hub := NewHub(Config{MaxBatchEvents: 1, MaxBatchWait: time.Second}, sink)

	session := UUIDToBytes(uuid.MustParse("00000000-0000-0000-0000-000000000001"))
	for _, key := range []string{"a", "b"} {
		hub.Emit(Event{
			SessionID: session,
			TS:        time.Unix(0, 0),
			Stage:     StageProfileStored,
			URL:       "https://directory.example.com/users/" + key,
		})
	}
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("profiles stored: %d\n", sink.stored)
	// Output:
	// profiles stored: 2
}
