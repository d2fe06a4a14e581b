package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultProbeInterval matches the spec's default health probe cadence.
const DefaultProbeInterval = 30 * time.Second

// DefaultProbeTimeout bounds a single health probe request when the
// caller doesn't supply one.
const DefaultProbeTimeout = 5 * time.Second

// Prober periodically polls each registered service's health path and
// records the outcome on the Registry, grounded on the teacher's
// background-ticker-goroutine idiom (pkg/outbox.Worker's poll loop).
type Prober struct {
	registry     *Registry
	client       *http.Client
	interval     time.Duration
	probeTimeout time.Duration
	log          *slog.Logger

	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewProber builds a Prober polling every interval (DefaultProbeInterval
// if zero), bounding each individual probe request by timeout
// (DefaultProbeTimeout if zero).
func NewProber(registry *Registry, interval, timeout time.Duration) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		registry:     registry,
		client:       &http.Client{Timeout: timeout},
		interval:     interval,
		probeTimeout: timeout,
		log:          slog.With("component", "gateway.prober"),
		stopCh:       make(chan struct{}),
	}
}

// Start begins the polling loop, probing once immediately so the
// health table is populated before the first tick.
func (p *Prober) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.probeAll(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.probeAll(ctx)
			}
		}
	}()
}

// Stop halts the polling loop and waits for it to exit.
func (p *Prober) Stop() {
	p.once.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *Prober) probeAll(ctx context.Context) {
	for _, svc := range p.registry.Services() {
		healthy := p.probeOne(ctx, svc)
		p.registry.SetHealthy(svc.Name, healthy)
	}
}

func (p *Prober) probeOne(ctx context.Context, svc Service) bool {
	if svc.HealthPath == "" {
		return true
	}
	reqCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, svc.BaseURL+svc.HealthPath, nil)
	if err != nil {
		p.log.Warn("failed to build health probe request", "service", svc.Name, "error", err)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// AggregatedHealthHandler serves GET /health, summarizing every
// registered service's last observed health (spec §4.9).
func AggregatedHealthHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := registry.HealthSnapshot()

		services := make(map[string]string, len(snapshot))
		healthyCount := 0
		for name, healthy := range snapshot {
			if healthy {
				services[name] = "healthy"
				healthyCount++
			} else {
				services[name] = "unhealthy"
			}
		}

		total := len(snapshot)
		percentage := 100.0
		if total > 0 {
			percentage = float64(healthyCount) / float64(total) * 100
		}

		status := "healthy"
		if healthyCount < total {
			status = "degraded"
		}
		if total > 0 && healthyCount == 0 {
			status = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"gateway":  status,
			"services": services,
			"summary": map[string]any{
				"healthy":    healthyCount,
				"total":      total,
				"percentage": percentage,
			},
		})
	}
}
