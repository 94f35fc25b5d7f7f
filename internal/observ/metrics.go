package observ

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Message outcomes recorded by the delivery router.
const (
	OutcomeDelivered = "delivered"
	OutcomeOffline   = "offline"
	OutcomeBlocked   = "blocked"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// Push outcomes recorded by the notification dispatcher.
const (
	PushSent    = "sent"
	PushFailed  = "failed"
	PushSkipped = "skipped"
	PushRemoved = "token_removed"
)

// Metrics groups the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so components can be built without it in tests.
type Metrics struct {
	online   prometheus.Gauge
	messages *prometheus.CounterVec
	push     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketchat",
			Name:      "presence_online",
			Help:      "Users with a registered realtime connection.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketchat",
			Name:      "messages_total",
			Help:      "sendMessage events by outcome.",
		}, []string{"outcome"}),
		push: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketchat",
			Name:      "push_total",
			Help:      "Push provider deliveries by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.online, m.messages, m.push)
	return m
}

func (m *Metrics) SetOnline(n int) {
	if m == nil {
		return
	}
	m.online.Set(float64(n))
}

func (m *Metrics) Message(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Push(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.push.WithLabelValues(outcome).Add(float64(n))
}

// CacheStats reports cumulative profile cache lookups.
type CacheStats func() (hits, misses, errs int64)

// RegisterCacheStats exposes the profile cache counters on reg. stats is
// called at scrape time.
func RegisterCacheStats(reg prometheus.Registerer, stats CacheStats) {
	counter := func(name, help string, pick func(h, m, e int64) int64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "marketchat",
			Subsystem: "profile_cache",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(pick(stats()))
		})
	}
	reg.MustRegister(
		counter("hits_total", "Profile lookups served from Redis.", func(h, _, _ int64) int64 { return h }),
		counter("misses_total", "Profile lookups that went to the repository.", func(_, m, _ int64) int64 { return m }),
		counter("errors_total", "Redis reads that failed or returned a corrupt entry.", func(_, _, e int64) int64 { return e }),
	)
}
