package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// opStats tracks a single named operation, e.g. "provider.create_intent".
type opStats struct {
	calls    Counter
	failures Counter
	nanos    Counter
}

// OpSnapshot is a point-in-time copy of an operation's counters.
type OpSnapshot struct {
	Calls        uint64 `json:"calls"`
	Failures     uint64 `json:"failures"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Registry is a concurrency-safe set of operation counters. The zero value is ready to use.
type Registry struct {
	ops sync.Map // string -> *opStats
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) get(op string) *opStats {
	if v, ok := r.ops.Load(op); ok {
		return v.(*opStats)
	}
	v, _ := r.ops.LoadOrStore(op, &opStats{})
	return v.(*opStats)
}

// Observe records one call of op that took d and failed when err != nil.
// A nil Registry ignores the call.
func (r *Registry) Observe(op string, d time.Duration, err error) {
	if r == nil {
		return
	}
	s := r.get(op)
	s.calls.Inc()
	if err != nil {
		s.failures.Inc()
	}
	if d > 0 {
		s.nanos.Add(uint64(d))
	}
}

// Inc bumps a plain event counter such as "webhook.rejected".
func (r *Registry) Inc(op string) {
	if r == nil {
		return
	}
	r.get(op).calls.Inc()
}

// Track starts a timer and returns a func that records the outcome.
//
//	done := reg.Track("provider.refund")
//	defer func() { done(err) }()
func (r *Registry) Track(op string) func(error) {
	t := StartTimer()
	return func(err error) {
		r.Observe(op, t.Duration(), err)
	}
}

func (r *Registry) Snapshot() map[string]OpSnapshot {
	out := make(map[string]OpSnapshot)
	if r == nil {
		return out
	}
	r.ops.Range(func(k, v any) bool {
		s := v.(*opStats)
		calls := s.calls.Load()
		snap := OpSnapshot{Calls: calls, Failures: s.failures.Load()}
		if calls > 0 {
			snap.AvgLatencyMs = float64(s.nanos.Load()) / float64(calls) / float64(time.Millisecond)
		}
		out[k.(string)] = snap
		return true
	})
	return out
}
