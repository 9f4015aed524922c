package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/directory-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	sessionsRunning   prometheus.Gauge
	sessionRuntime    prometheus.Histogram

	listingPages   *prometheus.CounterVec
	linksFound     prometheus.Counter
	listingLatency prometheus.Histogram

	profiles        *prometheus.CounterVec
	profileDuration *prometheus.HistogramVec

	running map[[16]byte]struct{}
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dircrawler_sessions_started_total",
			Help: "Crawl sessions started.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dircrawler_sessions_completed_total",
			Help: "Crawl sessions completed partitioned by stop reason.",
		}, []string{"reason"}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dircrawler_sessions_running",
			Help: "Crawl sessions currently running.",
		}),
		sessionRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dircrawler_session_runtime_seconds",
			Help:    "Wall time per completed session.",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		}),
		listingPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dircrawler_listing_pages_total",
			Help: "Listing pages fetched partitioned by result.",
		}, []string{"result"}),
		linksFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dircrawler_profile_links_discovered_total",
			Help: "Profile links discovered on listing pages.",
		}),
		listingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dircrawler_listing_duration_seconds",
			Help:    "Time to load and scan one listing page.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45},
		}),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dircrawler_profiles_total",
			Help: "Profiles handled partitioned by outcome.",
		}, []string{"outcome"}),
		profileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dircrawler_profile_duration_seconds",
			Help:    "Time to fetch, extract and store one profile.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
		}, []string{"outcome"}),
		running: make(map[[16]byte]struct{}),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsCompleted,
		s.sessionsRunning,
		s.sessionRuntime,
		s.listingPages,
		s.linksFound,
		s.listingLatency,
		s.profiles,
		s.profileDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors. The hub calls it from a single goroutine.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageSessionStart:
		s.sessionsStarted.Inc()
		if _, ok := s.running[evt.SessionID]; !ok {
			s.running[evt.SessionID] = struct{}{}
			s.sessionsRunning.Inc()
		}
	case progress.StageSessionDone:
		reason := evt.Note
		if reason == "" {
			reason = "unknown"
		}
		s.sessionsCompleted.WithLabelValues(reason).Inc()
		if evt.Dur > 0 {
			s.sessionRuntime.Observe(evt.Dur.Seconds())
		}
		if _, ok := s.running[evt.SessionID]; ok {
			delete(s.running, evt.SessionID)
			s.sessionsRunning.Dec()
		}
	case progress.StageListingDone:
		s.listingPages.WithLabelValues("ok").Inc()
		s.linksFound.Add(float64(evt.Links))
		if evt.Dur > 0 {
			s.listingLatency.Observe(evt.Dur.Seconds())
		}
	case progress.StageListingFault:
		s.listingPages.WithLabelValues("fault").Inc()
	default:
		outcome := evt.Stage.Outcome()
		if outcome == "" {
			return
		}
		s.profiles.WithLabelValues(outcome).Inc()
		if evt.Dur > 0 {
			s.profileDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
