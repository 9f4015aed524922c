// Package progress carries crawl milestones from the controller to pluggable
// sinks. Events are batched on a background goroutine so the crawl loop never
// waits on logging or metrics.
package progress
