// Package gateway implements the control plane's "front door" (spec
// §4.9, EXPANDED — the teacher carries no gateway of its own). A
// Registry holds one entry per downstream service
// ({name, base_url, health_path, timeout, retry_count}); a longest-
// prefix routing table maps inbound paths to a registry entry; a
// Proxy built on httputil.ReverseProxy forwards the request with
// github.com/cenkalti/backoff/v4 bounded retries; a Prober polls each
// service's health path on an interval and an aggregated /health
// handler reports the union. Grounded on the teacher's
// component-with-slog-logger idiom (pkg/queue/pool.go, pkg/events/manager.go)
// since no in-pack example implements an HTTP reverse-proxy gateway —
// other_examples/*gateway* files turned out to be an LLM chat router,
// a Kubernetes-operator OpenAI-compatible shim, and an unrelated ReAct
// agent loop, none of which proxy HTTP to a registry of services (see
// DESIGN.md).
package gateway

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Service is one registry entry (spec §4.9).
type Service struct {
	Name       string
	BaseURL    string
	HealthPath string
	Timeout    time.Duration
	RetryCount int
}

// Route is one routing-table entry (spec §4.9).
type Route struct {
	PathPrefix    string
	TargetService string
	StripPrefix   bool
	RequireAuth   bool
}

// Registry holds the known services and the routing table that maps
// request paths onto them, plus each service's last observed health.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
	routes   []Route
	healthy  map[string]bool
}

// NewRegistry builds a Registry from the configured services and
// routes, sorting routes by descending prefix length so lookups are a
// simple first-match-wins walk (longest-prefix routing).
func NewRegistry(services []Service, routes []Route) (*Registry, error) {
	byName := make(map[string]Service, len(services))
	for _, s := range services {
		if s.Name == "" || s.BaseURL == "" {
			return nil, fmt.Errorf("gateway: service entry missing name or base_url: %+v", s)
		}
		byName[s.Name] = s
	}

	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	for _, r := range sorted {
		if _, ok := byName[r.TargetService]; !ok {
			return nil, fmt.Errorf("gateway: route %q targets unknown service %q", r.PathPrefix, r.TargetService)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].PathPrefix) > len(sorted[j].PathPrefix)
	})

	healthy := make(map[string]bool, len(services))
	for _, s := range services {
		healthy[s.Name] = false
	}

	return &Registry{services: byName, routes: sorted, healthy: healthy}, nil
}

// Match returns the longest-prefix route matching path, if any.
func (r *Registry) Match(path string) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, route := range r.routes {
		if route.PathPrefix == "/" || hasPathPrefix(path, route.PathPrefix) {
			return route, true
		}
	}
	return Route{}, false
}

func hasPathPrefix(path, prefix string) bool {
	if len(path) < len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix
}

// Service looks up a registered service by name.
func (r *Registry) Service(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[name]
	return s, ok
}

// Services returns every registered service, stably ordered by name.
func (r *Registry) Services() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Service, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetHealthy records the last observed health probe outcome for name.
func (r *Registry) SetHealthy(name string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.healthy[name] = healthy
}

// IsHealthy reports the last observed health probe outcome for name.
func (r *Registry) IsHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy[name]
}

// HealthSnapshot returns a name→healthy copy of the current health table.
func (r *Registry) HealthSnapshot() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.healthy))
	for k, v := range r.healthy {
		out[k] = v
	}
	return out
}
