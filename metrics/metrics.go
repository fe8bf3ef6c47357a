// Package metrics tracks admission decisions, both as Prometheus collectors
// and as an in-process snapshot for the stats endpoint.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Idempotency outcomes.
const (
	OutcomePassthrough = "passthrough"
	OutcomeReplayed    = "replayed"
	OutcomeConflict    = "conflict"
	OutcomeStored      = "stored"
	OutcomeNotCached   = "not_cached"
	OutcomeFailOpen    = "fail_open"
)

// DefaultMaxPrincipals bounds how many principals keep per-principal stats.
const DefaultMaxPrincipals = 10000

// Metrics tracks admission statistics
type Metrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	blockedRequests atomic.Int64
	cacheFailures   atomic.Int64

	// Per-principal stats, least recently seen evicted past maxPrincipals
	mu             sync.RWMutex
	principalStats map[string]*PrincipalStats
	maxPrincipals  int
	seq            uint64
	idempotency    map[string]int64
	startTime      time.Time

	decisions   *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	cacheErrors *prometheus.CounterVec
}

// PrincipalStats tracks rate limit statistics for one principal
type PrincipalStats struct {
	Principal       string    `json:"principal"`
	TotalRequests   int64     `json:"total_requests"`
	AllowedRequests int64     `json:"allowed_requests"`
	BlockedRequests int64     `json:"blocked_requests"`
	FirstRequestAt  time.Time `json:"first_request_at"`
	LastRequestAt   time.Time `json:"last_request_at"`

	lastSeen uint64
}

// New creates a metrics tracker and registers its collectors with reg.
// A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		principalStats: make(map[string]*PrincipalStats),
		maxPrincipals:  DefaultMaxPrincipals,
		idempotency:    make(map[string]int64),
		startTime:      time.Now(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by category and outcome.",
		}, []string{"category", "outcome"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admission",
			Subsystem: "idempotency",
			Name:      "outcomes_total",
			Help:      "Idempotency filter outcomes.",
		}, []string{"outcome"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admission",
			Name:      "cache_failures_total",
			Help:      "Cache operations that failed and were recovered by failing open.",
		}, []string{"component", "op"}),
	}

	if reg != nil {
		reg.MustRegister(m.decisions, m.outcomes, m.cacheErrors)
	}
	return m
}

// WithMaxPrincipals changes how many principals are tracked. Non-positive
// values are ignored.
func (m *Metrics) WithMaxPrincipals(n int) *Metrics {
	if n > 0 {
		m.mu.Lock()
		m.maxPrincipals = n
		for len(m.principalStats) > n {
			m.evictOldest()
		}
		m.mu.Unlock()
	}
	return m
}

// RecordDecision records a rate limit check
func (m *Metrics) RecordDecision(category, principal string, allowed bool) {
	m.totalRequests.Add(1)

	outcome := "allowed"
	if allowed {
		m.allowedRequests.Add(1)
	} else {
		m.blockedRequests.Add(1)
		outcome = "blocked"
	}
	m.decisions.WithLabelValues(category, outcome).Inc()

	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, exists := m.principalStats[principal]
	if !exists {
		if len(m.principalStats) >= m.maxPrincipals {
			m.evictOldest()
		}
		stats = &PrincipalStats{
			Principal:      principal,
			FirstRequestAt: now,
		}
		m.principalStats[principal] = stats
	}

	stats.TotalRequests++
	if allowed {
		stats.AllowedRequests++
	} else {
		stats.BlockedRequests++
	}
	stats.LastRequestAt = now
	m.seq++
	stats.lastSeen = m.seq
}

// evictOldest drops the least recently seen principal. Callers hold mu.
func (m *Metrics) evictOldest() {
	var (
		oldest    string
		oldestSeq uint64
		found     bool
	)
	for name, stats := range m.principalStats {
		if !found || stats.lastSeen < oldestSeq {
			oldest, oldestSeq, found = name, stats.lastSeen, true
		}
	}
	if found {
		delete(m.principalStats, oldest)
	}
}

// RecordIdempotency records the outcome of one idempotency filter pass
func (m *Metrics) RecordIdempotency(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()

	m.mu.Lock()
	m.idempotency[outcome]++
	m.mu.Unlock()
}

// RecordCacheFailure records a cache error that was absorbed by failing open
func (m *Metrics) RecordCacheFailure(component, op string) {
	m.cacheFailures.Add(1)
	m.cacheErrors.WithLabelValues(component, op).Inc()
}

// Snapshot represents a point-in-time view of metrics
type Snapshot struct {
	TotalRequests   int64             `json:"total_requests"`
	AllowedRequests int64             `json:"allowed_requests"`
	BlockedRequests int64             `json:"blocked_requests"`
	CacheFailures   int64             `json:"cache_failures"`
	UniquePrincipal int64             `json:"unique_principals"`
	TopPrincipals   []*PrincipalStats `json:"top_principals"`
	Idempotency     map[string]int64  `json:"idempotency"`
	UptimeSeconds   int64             `json:"uptime_seconds"`
	StartTime       time.Time         `json:"start_time"`
}

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	top := make([]*PrincipalStats, 0, len(m.principalStats))
	for _, stats := range m.principalStats {
		s := *stats
		top = append(top, &s)
	}

	// Most-blocked first, then busiest
	sort.Slice(top, func(i, j int) bool {
		if top[i].BlockedRequests != top[j].BlockedRequests {
			return top[i].BlockedRequests > top[j].BlockedRequests
		}
		if top[i].TotalRequests != top[j].TotalRequests {
			return top[i].TotalRequests > top[j].TotalRequests
		}
		return top[i].Principal < top[j].Principal
	})
	if len(top) > 10 {
		top = top[:10]
	}

	idem := make(map[string]int64, len(m.idempotency))
	for k, v := range m.idempotency {
		idem[k] = v
	}

	return &Snapshot{
		TotalRequests:   m.totalRequests.Load(),
		AllowedRequests: m.allowedRequests.Load(),
		BlockedRequests: m.blockedRequests.Load(),
		CacheFailures:   m.cacheFailures.Load(),
		UniquePrincipal: int64(len(m.principalStats)),
		TopPrincipals:   top,
		Idempotency:     idem,
		UptimeSeconds:   int64(time.Since(m.startTime).Seconds()),
		StartTime:       m.startTime,
	}
}
