package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Crawl milestones.
const (
	StageSessionStart     Stage = "SESSION_START"
	StageSessionDone      Stage = "SESSION_DONE"
	StageListingDone      Stage = "LISTING_DONE"
	StageListingFault     Stage = "LISTING_FAULT"
	StageProfileStored    Stage = "PROFILE_STORED"
	StageProfileDuplicate Stage = "PROFILE_DUPLICATE"
	StageProfileSkipped   Stage = "PROFILE_SKIPPED"
	StageProfileDiscarded Stage = "PROFILE_DISCARDED"
	StageProfileFailed    Stage = "PROFILE_FAILED"
)

// Outcome maps profile stages to the short label used by metrics.
func (s Stage) Outcome() string {
	switch s {
	case StageProfileStored:
		return "stored"
	case StageProfileDuplicate:
		return "duplicate"
	case StageProfileSkipped:
		return "skipped"
	case StageProfileDiscarded:
		return "discarded"
	case StageProfileFailed:
		return "failed"
	default:
		return ""
	}
}

// Event is one crawl milestone.
type Event struct {
	// SessionID tags every event of one run.
	SessionID [16]byte
	// TS is the UTC time the emitter observed the milestone.
	TS    time.Time
	Stage Stage
	// Page is the listing page number for listing events.
	Page int
	// URL is the listing or profile URL.
	URL string
	// Links counts profile links discovered on a listing page.
	Links int
	// Dur is the time spent on the listing or profile.
	Dur time.Duration
	// Note carries low-volume context such as an error string or stop reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.SessionID == [16]byte{} {
		return errors.New("session id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageSessionStart, StageSessionDone:
	case StageListingDone, StageListingFault:
		if e.Page <= 0 {
			return errors.New("listing event requires page")
		}
	case StageProfileStored, StageProfileDuplicate, StageProfileSkipped,
		StageProfileDiscarded, StageProfileFailed:
		if e.URL == "" {
			return errors.New("profile event requires url")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// SessionUUID converts the binary session ID to uuid.UUID.
func (e Event) SessionUUID() uuid.UUID {
	return uuid.UUID(e.SessionID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
