package observability

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	json "github.com/goccy/go-json"
)

// Pinger is anything that can report its own health, such as a store or an archive.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type dependency struct {
	name     string
	check    func(ctx context.Context) error
	required bool
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	version string
	deps    []dependency
}

// NewHealthChecker creates a health checker over the store and an optional Redis client.
// A failing store makes the service unhealthy; a failing Redis only degrades it.
func NewHealthChecker(version string, store Pinger, client *redis.Client) *HealthChecker {
	h := &HealthChecker{version: version}
	if store != nil {
		h.deps = append(h.deps, dependency{name: "store", check: store.HealthCheck, required: true})
	}
	if client != nil {
		h.deps = append(h.deps, dependency{name: "redis", check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return h
}

// AddOptional registers a dependency whose failure degrades but does not fail readiness.
func (h *HealthChecker) AddOptional(name string, p Pinger) {
	h.deps = append(h.deps, dependency{name: name, check: p.HealthCheck})
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness returns a simple liveness probe (always returns 200 if server is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness returns a readiness probe (checks all dependencies)
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check runs every dependency check and folds them into one status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.deps)),
	}

	for _, dep := range h.deps {
		ds := runCheck(ctx, dep.check)
		status.Dependencies[dep.name] = ds
		if ds.Status != StatusUnhealthy {
			continue
		}
		if dep.required {
			status.Status = StatusUnhealthy
		} else if status.Status != StatusUnhealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

// Names lists the registered dependencies in sorted order.
func (h *HealthChecker) Names() []string {
	names := make([]string, 0, len(h.deps))
	for _, dep := range h.deps {
		names = append(names, dep.name)
	}
	sort.Strings(names)
	return names
}

func runCheck(ctx context.Context, check func(context.Context) error) DependencyStatus {
	start := time.Now()
	err := check(ctx)
	status := DependencyStatus{
		Status:    StatusHealthy,
		Latency:   time.Since(start),
		Timestamp: time.Now(),
	}
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health", checker.Readiness)
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}
