// Package metrics serves the optional operator endpoint: Prometheus metrics,
// a liveness probe and a JSON view of the running crawl session.
package metrics
