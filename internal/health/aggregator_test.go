package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func healthServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAggregateAllOnline(t *testing.T) {
	a := NewAggregator([]Target{
		{Name: "chat", BaseURL: healthServer(t, 200, `{"status":"healthy"}`).URL},
		{Name: "memory", BaseURL: healthServer(t, 200, `{}`).URL},
	}, time.Second)

	status := a.Aggregate(context.Background())
	if status.OverallStatus != StatusOnline {
		t.Errorf("expected overall online, got %s", status.OverallStatus)
	}
	if status.Services["chat"] != StatusOnline {
		t.Errorf("chat: expected online, got %s", status.Services["chat"])
	}
	// A 2xx with no status field still counts as online.
	if status.Services["memory"] != StatusOnline {
		t.Errorf("memory: expected online, got %s", status.Services["memory"])
	}
	if status.Services["gateway"] != StatusOnline {
		t.Error("gateway must always report itself online")
	}
}

func TestAggregateDegraded(t *testing.T) {
	a := NewAggregator([]Target{
		{Name: "chat", BaseURL: healthServer(t, 200, `{"status":"healthy"}`).URL},
		{Name: "memory", BaseURL: healthServer(t, 200, `{"status":"db_unavailable"}`).URL},
	}, time.Second)

	status := a.Aggregate(context.Background())
	if status.Services["memory"] != StatusDegraded {
		t.Errorf("memory: expected degraded, got %s", status.Services["memory"])
	}
	if status.OverallStatus != StatusDegraded {
		t.Errorf("expected overall degraded, got %s", status.OverallStatus)
	}
}

func TestAggregateOfflineDominates(t *testing.T) {
	a := NewAggregator([]Target{
		{Name: "chat", BaseURL: healthServer(t, 200, `{"status":"healthy"}`).URL},
		{Name: "memory", BaseURL: healthServer(t, 200, `{"status":"impaired"}`).URL},
		{Name: "quiz", BaseURL: healthServer(t, 503, "").URL},
	}, time.Second)

	status := a.Aggregate(context.Background())
	if status.Services["quiz"] != StatusOffline {
		t.Errorf("quiz: expected offline, got %s", status.Services["quiz"])
	}
	if status.OverallStatus != StatusOffline {
		t.Errorf("one offline backend must make overall offline, got %s", status.OverallStatus)
	}
}

func TestAggregateUnreachableBackend(t *testing.T) {
	a := NewAggregator([]Target{
		{Name: "chat", BaseURL: "http://127.0.0.1:1"},
	}, time.Second)

	status := a.Aggregate(context.Background())
	if status.Services["chat"] != StatusOffline {
		t.Errorf("unreachable backend: expected offline, got %s", status.Services["chat"])
	}
}

func TestAggregateSlowBackendTimesOut(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)

	fast := healthServer(t, 200, `{"status":"healthy"}`)

	a := NewAggregator([]Target{
		{Name: "slow", BaseURL: slow.URL},
		{Name: "fast", BaseURL: fast.URL},
	}, 100*time.Millisecond)

	start := time.Now()
	status := a.Aggregate(context.Background())
	elapsed := time.Since(start)

	// One slow probe must neither block the others nor stall the whole
	// aggregation past its own timeout.
	if elapsed > time.Second {
		t.Errorf("aggregation took %v, timeouts not enforced", elapsed)
	}
	if status.Services["slow"] != StatusOffline {
		t.Errorf("slow: expected offline, got %s", status.Services["slow"])
	}
	if status.Services["fast"] != StatusOnline {
		t.Errorf("fast: expected online, got %s", status.Services["fast"])
	}
}

func TestAggregateDetailsSorted(t *testing.T) {
	a := NewAggregator([]Target{
		{Name: "zeta", BaseURL: healthServer(t, 200, `{"status":"healthy"}`).URL},
		{Name: "alpha", BaseURL: healthServer(t, 200, `{"status":"healthy"}`).URL},
	}, time.Second)

	status := a.Aggregate(context.Background())
	if len(status.Details) != 3 {
		t.Fatalf("expected 3 results, got %d", len(status.Details))
	}
	for i := 1; i < len(status.Details); i++ {
		if status.Details[i-1].Name > status.Details[i].Name {
			t.Fatalf("details not sorted: %s before %s", status.Details[i-1].Name, status.Details[i].Name)
		}
	}
}

func TestMetricValue(t *testing.T) {
	if MetricValue(StatusOnline) != 1 {
		t.Error("online should map to 1")
	}
	if MetricValue(StatusDegraded) != 0.5 {
		t.Error("degraded should map to 0.5")
	}
	if MetricValue(StatusOffline) != 0 {
		t.Error("offline should map to 0")
	}
}
