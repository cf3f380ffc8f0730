package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	errorCount        map[string]int64
	escalationsFired  int64
	escalationsBlock  int64
	relayFailures     int64
	reportsGenerated  int64
	staleTransitions  int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordEscalationFired counts delivered escalation notices.
func (m *Metrics) RecordEscalationFired() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalationsFired++
}

// RecordEscalationDropped counts expiries dropped because the tenant was unusable.
func (m *Metrics) RecordEscalationDropped() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalationsBlock++
}

// RecordRelayFailure counts failed relay deliveries.
func (m *Metrics) RecordRelayFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relayFailures++
}

// RecordReportGenerated counts generated tenant reports.
func (m *Metrics) RecordReportGenerated() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportsGenerated++
}

// RecordStaleTransition counts rejected out-of-order status updates.
func (m *Metrics) RecordStaleTransition() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleTransitions++
}

// Snapshot returns current counter values keyed by name.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int64{
		"escalations_fired":   m.escalationsFired,
		"escalations_dropped": m.escalationsBlock,
		"relay_failures":      m.relayFailures,
		"reports_generated":   m.reportsGenerated,
		"stale_transitions":   m.staleTransitions,
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
