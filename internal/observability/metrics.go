package observability

import (
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/everhighit/coach-api/internal/platform/envutil"
)

type Metrics struct {
	apiRequests      *CounterVec
	apiLatency       *HistogramVec
	apiInflight      *Gauge
	providerRequests *CounterVec
	providerLatency  *HistogramVec
	storeRequests    *CounterVec
	lessonTurns      *CounterVec
	lessonSessions   *CounterVec
	ttsCache         *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process-wide metrics, nil when disabled. All methods accept a nil receiver.
func Current() *Metrics {
	return instance
}

func Init() *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
	})
	return instance
}

// NewMetrics builds an unregistered set, used by Init and by tests.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("coach_api_requests_total", "API requests by method/route/status.", "method", "route", "status"),
		apiLatency: NewHistogramVec("coach_api_request_duration_seconds", "API request latency in seconds.",
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}, "method", "route"),
		apiInflight:      NewGauge("coach_api_inflight_requests", "In-flight API requests."),
		providerRequests: NewCounterVec("coach_provider_requests_total", "Outbound AI provider calls by backend/op/outcome.", "backend", "op", "outcome"),
		providerLatency: NewHistogramVec("coach_provider_request_duration_seconds", "Outbound AI provider latency in seconds.",
			nil, "backend", "op"),
		storeRequests:  NewCounterVec("coach_store_requests_total", "Session store calls by backend/op/outcome.", "backend", "op", "outcome"),
		lessonTurns:    NewCounterVec("coach_lesson_turns_total", "Evaluated lesson turns by topic/result.", "topic", "result"),
		lessonSessions: NewCounterVec("coach_lesson_sessions_total", "Lesson sessions by topic/event.", "topic", "event"),
		ttsCache:       NewCounterVec("coach_tts_cache_total", "Speech cache lookups by result.", "result"),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.providerRequests, m.providerLatency, m.storeRequests,
		m.lessonTurns, m.lessonSessions, m.ttsCache,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return
		}
	}
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveProvider(backend, op string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.Inc(backend, op, outcome(err))
	m.providerLatency.Observe(dur.Seconds(), backend, op)
}

func (m *Metrics) ObserveStore(backend, op string, err error) {
	if m == nil {
		return
	}
	m.storeRequests.Inc(backend, op, outcome(err))
}

// ObserveTurn records one evaluated turn: "advanced", "repeat" or "completed".
func (m *Metrics) ObserveTurn(topic, result string) {
	if m == nil {
		return
	}
	m.lessonTurns.Inc(topic, result)
}

func (m *Metrics) ObserveSession(topic, event string) {
	if m == nil {
		return
	}
	m.lessonSessions.Inc(topic, event)
}

func (m *Metrics) ObserveTTSCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ttsCache.Inc("hit")
		return
	}
	m.ttsCache.Inc("miss")
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
