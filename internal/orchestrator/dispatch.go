// Package orchestrator is the single entry point for starting missions
// (spec §4.1): it never executes a mission locally, always delegating to
// the State Manager for persistence and to a bounded dispatch pool that
// hands the mission to the cognitive supervisor — grounded on the
// teacher's pkg/queue.WorkerPool dispatch model (bounded concurrency,
// per-session cancel-func registry, graceful drain on Stop).
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/missionctl/internal/missionstate"
	"github.com/codeready-toolchain/missionctl/internal/storage"
	"github.com/codeready-toolchain/missionctl/internal/supervisor"
)

// completionTimeout bounds the fallback CompleteMission call made after a
// cancelled or errored supervisor run. It deliberately uses a fresh,
// un-canceled context: runCtx may already be done (e.g. the mission was
// cancelled), and a canceled context would fail storage.Queries.WithTx's
// BeginTx immediately, leaving the mission stuck in "running" forever.
const completionTimeout = 5 * time.Second

// DispatchPool bounds concurrent supervisor runs and lets a running
// mission be cancelled by ID, generalised from the teacher's
// activeSessions cancel-func registry (pkg/queue/pool.go).
type DispatchPool struct {
	manager    *missionstate.Manager
	supervisor *supervisor.Supervisor

	sem chan struct{}

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	wg      sync.WaitGroup
	stopped bool

	log *slog.Logger
}

// NewDispatchPool constructs a pool that runs at most concurrency
// supervisor graphs at a time.
func NewDispatchPool(manager *missionstate.Manager, sup *supervisor.Supervisor, concurrency int) *DispatchPool {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &DispatchPool{
		manager:    manager,
		supervisor: sup,
		sem:        make(chan struct{}, concurrency),
		active:     make(map[string]context.CancelFunc),
		log:        slog.With("component", "orchestrator.dispatch"),
	}
}

// Dispatch hands missionID to the supervisor in a background goroutine,
// detached from the caller's request context (spec §5: cancellation is
// best-effort via the mission's own cancel func, never the HTTP
// request's). Blocks only long enough to register the mission as
// active; the supervisor run itself proceeds asynchronously.
func (p *DispatchPool) Dispatch(missionID, objective string, forceResearch bool) {
	runCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		cancel()
		p.log.Warn("dispatch pool stopped, refusing new mission", "mission_id", missionID)
		return
	}
	p.active[missionID] = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.active, missionID)
			p.mu.Unlock()
			cancel()
		}()

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-runCtx.Done():
			completeCtx, cancel := context.WithTimeout(context.Background(), completionTimeout)
			defer cancel()
			if completeErr := p.manager.CompleteMission(completeCtx, missionID, storage.MissionFailed, nil, "cancelled"); completeErr != nil {
				p.log.Error("failed to record mission cancellation", "mission_id", missionID, "error", completeErr)
			}
			return
		}

		outcome, err := p.supervisor.Run(runCtx, missionID, objective, forceResearch)
		if err != nil {
			p.log.Error("supervisor run failed", "mission_id", missionID, "error", err)
			completeCtx, cancel := context.WithTimeout(context.Background(), completionTimeout)
			defer cancel()
			if completeErr := p.manager.CompleteMission(completeCtx, missionID, storage.MissionFailed, nil, err.Error()); completeErr != nil {
				p.log.Error("failed to record mission failure", "mission_id", missionID, "error", completeErr)
			}
			return
		}
		p.log.Info("supervisor run completed", "mission_id", missionID, "outcome", outcome)
	}()
}

// Cancel triggers cooperative cancellation for a mission running on this
// node's pool (spec §5: "best-effort, current-step-completes"). Returns
// false if no such mission is active here.
func (p *DispatchPool) Cancel(missionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancel, ok := p.active[missionID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Stop prevents new dispatches and waits for in-flight supervisor runs to
// finish; it does not cancel them.
func (p *DispatchPool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.wg.Wait()
}
