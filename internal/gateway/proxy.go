package gateway

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codeready-toolchain/missionctl/internal/apperrors"
)

// DefaultProxyTimeout bounds a single upstream attempt when the target
// service has no per-service Timeout configured.
const DefaultProxyTimeout = 10 * time.Second

// Proxy forwards requests to the service a Registry's routing table
// selects, retrying transient failures a bounded number of times with no
// delay between attempts (a teacher indirect dependency, github.com/cenkalti/backoff/v4,
// promoted to direct use here — see DESIGN.md).
type Proxy struct {
	registry       *Registry
	defaultTimeout time.Duration
	log            *slog.Logger
}

// NewProxy builds a Proxy over the given Registry. defaultTimeout bounds
// a single upstream attempt for services that don't set their own
// Timeout (DefaultProxyTimeout if zero).
func NewProxy(registry *Registry, defaultTimeout time.Duration) *Proxy {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultProxyTimeout
	}
	return &Proxy{registry: registry, defaultTimeout: defaultTimeout, log: slog.With("component", "gateway.proxy")}
}

// ServeHTTP implements http.Handler, routing r to the longest-prefix
// matching service and proxying the request with up to
// Service.RetryCount retries (no delay between attempts, per spec
// §4.9) before returning 502.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, ok := p.registry.Match(r.URL.Path)
	if !ok {
		http.Error(w, "no route for path", http.StatusNotFound)
		return
	}

	svc, ok := p.registry.Service(route.TargetService)
	if !ok {
		http.Error(w, "target service not registered", http.StatusBadGateway)
		return
	}

	target, err := url.Parse(svc.BaseURL)
	if err != nil {
		p.log.Error("invalid service base_url", "service", svc.Name, "error", err)
		http.Error(w, "gateway misconfigured", http.StatusBadGateway)
		return
	}

	outPath := r.URL.Path
	if route.StripPrefix {
		outPath = strings.TrimPrefix(outPath, route.PathPrefix)
		if outPath == "" || outPath[0] != '/' {
			outPath = "/" + outPath
		}
	}

	timeout := svc.Timeout
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}

	retries := svc.RetryCount
	if retries < 0 {
		retries = 0
	}

	// Buffer the request body once up front: httputil.ReverseProxy drains
	// r.Body on the first attempt, so retrying with the original r would
	// silently forward an empty body on every attempt after the first.
	var bodyBytes []byte
	if r.Body != nil {
		bodyBytes, err = io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()
	}

	var lastErr error
	attempt := 0
	boff := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), uint64(retries))

	operation := func() error {
		attempt++
		attemptReq := r.Clone(r.Context())
		attemptReq.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		attemptReq.ContentLength = int64(len(bodyBytes))

		status, err := p.forward(attemptReq, w, target, outPath, timeout)
		if err != nil {
			lastErr = err
			return err
		}
		_ = status
		return nil
	}

	if err := backoff.Retry(operation, boff); err != nil {
		p.log.Error("proxy attempts exhausted", "service", svc.Name, "path", r.URL.Path, "attempts", attempt, "error", lastErr)
		http.Error(w, apperrors.Upstream(svc.Name+" unavailable", lastErr).Error(), http.StatusBadGateway)
	}
}

// forward performs a single proxy attempt against target, buffering
// the upstream response so a failed attempt never partially writes to
// w before a retry.
func (p *Proxy) forward(r *http.Request, w http.ResponseWriter, target *url.URL, outPath string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	capture := &bufferedResponseWriter{header: make(http.Header)}

	rp := httputil.NewSingleHostReverseProxy(target)
	originalDirector := rp.Director
	rp.Director = func(req *http.Request) {
		originalDirector(req)
		req.URL.Path = outPath
		req.Host = target.Host
	}

	var proxyErr error
	rp.ErrorHandler = func(_ http.ResponseWriter, _ *http.Request, err error) {
		proxyErr = err
	}

	rp.ServeHTTP(capture, r.WithContext(ctx))
	if proxyErr != nil {
		return 0, proxyErr
	}
	if capture.status >= 500 {
		return capture.status, apperrors.Upstream("upstream returned "+http.StatusText(capture.status), nil)
	}

	for name, values := range capture.header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(capture.status)
	_, _ = w.Write(capture.body)
	return capture.status, nil
}

// bufferedResponseWriter collects a reverse-proxied response so the
// gateway can decide whether to retry before committing anything to
// the real client connection.
type bufferedResponseWriter struct {
	header http.Header
	status int
	body   []byte
}

func (b *bufferedResponseWriter) Header() http.Header { return b.header }

func (b *bufferedResponseWriter) Write(p []byte) (int, error) {
	b.body = append(b.body, p...)
	return len(p), nil
}

func (b *bufferedResponseWriter) WriteHeader(status int) {
	b.status = status
}
