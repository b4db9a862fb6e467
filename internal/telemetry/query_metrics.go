// Package telemetry tracks query patterns for search tuning. Metrics
// are in-memory and per-session; they answer "what do players actually
// ask" and "which queries come back empty" without persisting anything.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// LatencyBucket is a coarse latency class for distribution reporting.
type LatencyBucket string

const (
	LatencyFast   LatencyBucket = "under_100ms"
	LatencyOK     LatencyBucket = "100ms_to_1s"
	LatencySlow   LatencyBucket = "over_1s"
)

// LatencyToBucket classifies a query duration.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < 100*time.Millisecond:
		return LatencyFast
	case d < time.Second:
		return LatencyOK
	default:
		return LatencySlow
	}
}

// QueryEvent is one recorded search.
type QueryEvent struct {
	Query       string
	Collection  string
	ResultCount int
	Duration    time.Duration
	Timestamp   time.Time
}

// IsZeroResult reports whether the search found nothing.
func (e QueryEvent) IsZeroResult() bool { return e.ResultCount == 0 }

// TermCount pairs a query term with its occurrence count.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Snapshot is a point-in-time summary of recorded queries.
type Snapshot struct {
	TotalQueries      int64                   `json:"total_queries"`
	ZeroResultQueries []string                `json:"zero_result_queries,omitempty"`
	TopTerms          []TermCount             `json:"top_terms,omitempty"`
	Latency           map[LatencyBucket]int64 `json:"latency,omitempty"`
}

// ZeroResultPercentage returns the share of empty searches, 0-100.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(len(s.ZeroResultQueries)) / float64(s.TotalQueries) * 100
}

// maxZeroResultQueries bounds the retained empty-query list.
const maxZeroResultQueries = 50

// QueryMetrics accumulates query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu          sync.Mutex
	total       int64
	zeroResults []string
	termCounts  map[string]int
	latency     map[LatencyBucket]int64
}

// NewQueryMetrics creates an empty metrics accumulator.
func NewQueryMetrics() *QueryMetrics {
	return &QueryMetrics{
		termCounts: make(map[string]int),
		latency:    make(map[LatencyBucket]int64),
	}
}

// Record adds one search to the accumulator.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.latency[LatencyToBucket(event.Duration)]++
	for _, term := range ExtractTerms(event.Query) {
		m.termCounts[term]++
	}
	if event.IsZeroResult() && len(m.zeroResults) < maxZeroResultQueries {
		m.zeroResults = append(m.zeroResults, event.Query)
	}
}

// Snapshot returns a copy of the current state. Top terms are sorted
// by count descending, capped at 20.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		TotalQueries:      m.total,
		ZeroResultQueries: append([]string(nil), m.zeroResults...),
		Latency:           make(map[LatencyBucket]int64, len(m.latency)),
	}
	for bucket, count := range m.latency {
		snap.Latency[bucket] = count
	}

	terms := make([]TermCount, 0, len(m.termCounts))
	for term, count := range m.termCounts {
		terms = append(terms, TermCount{Term: term, Count: count})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > 20 {
		terms = terms[:20]
	}
	snap.TopTerms = terms
	return snap
}

// stopTerms are excluded from term counting.
var stopTerms = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "can": true,
	"do": true, "does": true, "for": true, "how": true, "i": true,
	"in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "the": true, "to": true, "what": true, "when": true,
	"you": true,
}

// ExtractTerms lowercases and splits the query, dropping stop words
// and single characters.
func ExtractTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()`)
		if len(f) < 2 || stopTerms[f] {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
