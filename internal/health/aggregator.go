package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the tri-state health of a service or of the whole system.
type Status string

const (
	StatusOnline   Status = "online"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// ServiceResult is one backend's probe outcome, produced fresh on every
// aggregation and never persisted.
type ServiceResult struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	LatencyMs float64 `json:"latency_ms,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// SystemStatus is the rolled-up view returned by /api/status.
type SystemStatus struct {
	Services      map[string]Status `json:"services"`
	Details       []ServiceResult   `json:"details"`
	OverallStatus Status            `json:"overallStatus"`
}

// Target is a backend registered for health probing.
type Target struct {
	Name    string
	BaseURL string
}

// Aggregator probes every registered backend's /health endpoint in
// parallel with independent timeouts and rolls the results up.
type Aggregator struct {
	targets []Target
	client  *http.Client
	timeout time.Duration
}

// NewAggregator creates an aggregator over the given targets.
func NewAggregator(targets []Target, probeTimeout time.Duration) *Aggregator {
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	return &Aggregator{
		targets: targets,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: probeTimeout,
	}
}

// healthBody is the minimal /health contract each backend exposes.
type healthBody struct {
	Status string `json:"status"`
}

// Aggregate probes all targets and rolls up. It never fails: on any
// internal error the caller still gets a best-effort payload with
// OverallStatus offline, because health reporting must itself stay up.
func (a *Aggregator) Aggregate(ctx context.Context) *SystemStatus {
	results := make([]ServiceResult, len(a.targets))

	g, ctx := errgroup.WithContext(ctx)
	for i, target := range a.targets {
		g.Go(func() error {
			results[i] = a.probe(ctx, target)
			return nil
		})
	}
	g.Wait()

	// The gateway is online by definition if it is answering.
	results = append(results, ServiceResult{Name: "gateway", Status: StatusOnline})
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	services := make(map[string]Status, len(results))
	overall := StatusOnline
	for _, res := range results {
		services[res.Name] = res.Status
		switch res.Status {
		case StatusOffline:
			overall = StatusOffline
		case StatusDegraded:
			if overall != StatusOffline {
				overall = StatusDegraded
			}
		}
	}

	return &SystemStatus{
		Services:      services,
		Details:       results,
		OverallStatus: overall,
	}
}

// probe performs a single bounded health check.
func (a *Aggregator) probe(ctx context.Context, target Target) ServiceResult {
	result := ServiceResult{Name: target.Name}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.BaseURL+"/health", nil)
	if err != nil {
		result.Status = StatusOffline
		result.Error = err.Error()
		return result
	}

	resp, err := a.client.Do(req)
	result.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		result.Status = StatusOffline
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Status = StatusOffline
		result.Error = resp.Status
		return result
	}

	// 2xx with status "healthy" (or no status field at all) is online;
	// any other status value means the backend is up but impaired.
	var body healthBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status == "" || body.Status == "healthy" {
		result.Status = StatusOnline
		return result
	}

	result.Status = StatusDegraded
	result.Detail = body.Status
	return result
}

// MetricValue maps a status onto the backend_up gauge scale.
func MetricValue(s Status) float64 {
	switch s {
	case StatusOnline:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}
