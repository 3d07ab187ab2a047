package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SearchMetrics counts resolved searches by the tier that produced them.
type SearchMetrics struct {
	resolved  *prometheus.CounterVec
	duration  prometheus.Histogram
	cacheHits *prometheus.CounterVec
}

func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	if reg == nil {
		return &SearchMetrics{}
	}
	resolved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_search_resolved_total",
		Help: "Search requests by resolved tier.",
	}, []string{"tier"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "directory_search_duration_seconds",
		Help:    "Time spent resolving a search, cache included.",
		Buckets: prometheus.DefBuckets,
	})
	cacheHits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_search_cache_total",
		Help: "Search cache lookups by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(resolved, duration, cacheHits)
	return &SearchMetrics{resolved: resolved, duration: duration, cacheHits: cacheHits}
}

// ObserveResolve records one resolved search.
func (s *SearchMetrics) ObserveResolve(tier string, elapsed time.Duration) {
	if s == nil || s.resolved == nil {
		return
	}
	s.resolved.WithLabelValues(normalizeLabel(tier)).Inc()
	s.duration.Observe(elapsed.Seconds())
}

// ObserveCache records a cache hit or miss.
func (s *SearchMetrics) ObserveCache(hit bool) {
	if s == nil || s.cacheHits == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	s.cacheHits.WithLabelValues(outcome).Inc()
}

// ModerationMetrics counts applied moderation transitions.
type ModerationMetrics struct {
	transitions *prometheus.CounterVec
}

func NewModerationMetrics(reg prometheus.Registerer) *ModerationMetrics {
	if reg == nil {
		return &ModerationMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "directory_moderation_transitions_total",
		Help: "Moderation transitions by entity and event.",
	}, []string{"entity", "event"})
	reg.MustRegister(transitions)
	return &ModerationMetrics{transitions: transitions}
}

// IncTransition increments the counter for entity ("business" or "pending_edit") and event.
func (m *ModerationMetrics) IncTransition(entity, event string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(entity), normalizeLabel(event)).Inc()
}
