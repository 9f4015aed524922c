package crawler

// State is the controller's position in the crawl loop.
type State int

// Controller states.
const (
	StateIdle State = iota
	StateFetchingListing
	StateExtractingLinks
	StateScrapingProfile
	StateAdvancingPage
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingListing:
		return "fetching-listing"
	case StateExtractingLinks:
		return "extracting-links"
	case StateScrapingProfile:
		return "scraping-profile"
	case StateAdvancingPage:
		return "advancing-page"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Reason explains why a crawl stopped.
type Reason string

// Stop reasons.
const (
	ReasonTargetReached Reason = "target_reached"
	ReasonExhausted     Reason = "exhausted"
	ReasonInterrupted   Reason = "interrupted"
	ReasonEndPage       Reason = "end_page"
	ReasonListingFault  Reason = "listing_fault"
	ReasonStuck         Reason = "stuck"
)

// Pagination selects how the controller reaches the next listing page.
type Pagination string

// Pagination strategies.
const (
	// PaginationQuery sets ?page=N on the base URL.
	PaginationQuery Pagination = "query"
	// PaginationNext clicks the next-page control.
	PaginationNext Pagination = "next"
	// PaginationAuto starts with the query parameter and switches to the
	// next-page control when a page repeats the previous page's links.
	PaginationAuto Pagination = "auto"
)

// Result summarizes one run.
type Result struct {
	// Pages counts listing pages loaded.
	Pages int
	// Discovered counts profile links found across pages.
	Discovered int
	// Skipped counts links already present in the store.
	Skipped int
	// Stored counts records newly persisted this run.
	Stored int
	// Duplicates counts inserts the store reported as already present.
	Duplicates int
	// Discarded counts profiles without a usable email.
	Discarded int
	// Failed counts profiles that could not be loaded or extracted.
	Failed int
	Reason Reason
}

// Session is the ephemeral state of a run. Nothing here is persisted; a
// restart re-derives progress from the store.
type Session struct {
	ID     [16]byte
	State  State
	Page   int
	Stored int
	Target int
}
