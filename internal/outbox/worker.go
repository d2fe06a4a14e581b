// Package outbox drains the transactional outbox to the event bus with
// at-least-once delivery, grounded on the teacher's pkg/queue.Worker
// poll/claim/process loop (there: claim-a-session-by-SKIP-LOCKED and
// execute it; here: claim a batch of pending outbox rows by SKIP LOCKED
// and publish each to the bus).
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/codeready-toolchain/missionctl/internal/eventbus"
	"github.com/codeready-toolchain/missionctl/internal/storage"
)

// Config tunes the worker's polling and retry behaviour.
type Config struct {
	PollInterval       time.Duration
	PollIntervalJitter time.Duration
	BatchSize          int
	MaxRetries         int
}

// Worker drains pending OutboxEntry rows and publishes them to the bus.
type Worker struct {
	q      *storage.Queries
	db     *sql.DB
	bus    *eventbus.Bus
	cfg    Config
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	log    *slog.Logger
}

// New constructs a Worker.
func New(q *storage.Queries, db *sql.DB, bus *eventbus.Bus, cfg Config) *Worker {
	return &Worker{
		q:      q,
		db:     db,
		bus:    bus,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		log:    slog.With("component", "outbox.worker"),
	}
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for the loop to exit. Safe to
// call more than once.
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	w.log.Info("outbox worker started")

	for {
		select {
		case <-w.stopCh:
			w.log.Info("outbox worker shutting down")
			return
		case <-ctx.Done():
			return
		default:
		}

		processed, err := w.pollAndProcessOnce(ctx)
		if err != nil {
			w.log.Error("outbox drain iteration failed", "error", err)
			w.sleep(time.Second)
			continue
		}
		if processed == 0 {
			w.sleep(w.pollInterval())
		}
	}
}

// pollAndProcessOnce claims one batch, publishes each entry, and marks
// terminal status. Recovers from panics in a single iteration so one bad
// entry can never take the worker down — the iteration is simply retried
// on the next poll.
func (w *Worker) pollAndProcessOnce(ctx context.Context) (processed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("outbox iteration panicked, recovering", "panic", r)
			err = fmt.Errorf("recovered panic: %v", r)
		}
	}()

	tx, txErr := w.db.BeginTx(ctx, nil)
	if txErr != nil {
		return 0, fmt.Errorf("beginning claim transaction: %w", txErr)
	}
	defer func() { _ = tx.Rollback() }()

	batchSize := w.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	entries, err := w.q.ClaimPendingOutboxEntries(ctx, tx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("claiming outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, tx.Commit()
	}

	for _, entry := range entries {
		w.processEntry(ctx, tx, entry)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing outbox batch: %w", err)
	}
	return len(entries), nil
}

// processEntry publishes one entry and marks it processed/failed within
// the same claiming transaction — so a crash between publish and mark
// leaves the row pending (never silently processed), guaranteeing
// at-least-once delivery. Consumers are idempotent by design since every
// payload carries a stable (mission_id, sequence) key.
func (w *Worker) processEntry(ctx context.Context, tx *sql.Tx, entry *storage.OutboxEntry) {
	var envelope struct {
		Sequence  int    `json:"sequence"`
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(entry.Payload, &envelope); err != nil {
		w.fail(ctx, tx, entry, fmt.Sprintf("unmarshaling payload: %v", err))
		return
	}

	w.bus.Publish(entry.Topic, eventbus.Envelope{
		Topic:   entry.Topic,
		Type:    envelope.EventType,
		Payload: entry.Payload,
	})

	if err := w.q.MarkOutboxProcessed(ctx, tx, entry.ID, time.Now()); err != nil {
		w.log.Error("failed to mark outbox entry processed", "entry_id", entry.ID, "error", err)
	}
}

func (w *Worker) fail(ctx context.Context, tx *sql.Tx, entry *storage.OutboxEntry, reason string) {
	maxRetries := w.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if entry.RetryCount+1 >= maxRetries {
		if err := w.q.MarkOutboxTerminalFailure(ctx, tx, entry.ID, reason); err != nil {
			w.log.Error("failed to mark outbox entry terminally failed", "entry_id", entry.ID, "error", err)
		}
		return
	}
	if err := w.q.MarkOutboxFailed(ctx, tx, entry.ID, reason); err != nil {
		w.log.Error("failed to record outbox entry failure", "entry_id", entry.ID, "error", err)
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *Worker) pollInterval() time.Duration {
	base := w.cfg.PollInterval
	jitter := w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}
