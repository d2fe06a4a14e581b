package gateway

import (
	"net/http"
	"time"
)

// Router is the gateway's top-level http.Handler: it serves the
// aggregated health endpoint itself and proxies everything else
// through Proxy according to the routing table.
type Router struct {
	proxy    *Proxy
	registry *Registry
}

// NewRouter builds a Router over the given Registry, with proxyTimeout
// as the per-attempt timeout fallback for services without their own
// Timeout configured (DefaultProxyTimeout if zero).
func NewRouter(registry *Registry, proxyTimeout time.Duration) *Router {
	return &Router{proxy: NewProxy(registry, proxyTimeout), registry: registry}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		AggregatedHealthHandler(rt.registry)(w, r)
		return
	}
	rt.proxy.ServeHTTP(w, r)
}
