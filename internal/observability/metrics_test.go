package observability

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/lesson/turn", 200, 120*time.Millisecond)
	m.ObserveProvider("openai", "chat", errors.New("boom"), time.Second)
	m.ObserveTurn("restaurant", "advanced")
	m.ObserveTTSCache(true)

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`coach_api_requests_total{method="POST",route="/lesson/turn",status="200"} 1.000000`,
		`coach_api_request_duration_seconds_bucket{method="POST",route="/lesson/turn",le="0.25"} 1`,
		`coach_provider_requests_total{backend="openai",op="chat",outcome="error"} 1.000000`,
		`coach_lesson_turns_total{topic="restaurant",result="advanced"} 1.000000`,
		`coach_tts_cache_total{result="hit"} 1.000000`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/health", 200, time.Millisecond)
	m.ObserveStore("supabase", "insert_turn", nil)
	m.APIInflightInc()

	rec := httptest.NewRecorder()
	m.WriteHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestLabelEscaping(t *testing.T) {
	c := NewCounterVec("x_total", "x", "k")
	c.Inc(`a"b`)
	if got := c.Value(`a"b`); got != 1 {
		t.Fatalf("Value=%v", got)
	}
	var sb strings.Builder
	if err := c.WritePrometheus(&sb); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), `x_total{k="a\"b"} 1.000000`) {
		t.Fatalf("got %s", sb.String())
	}
}
