package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/missionctl/internal/storage"
)

// RetentionSweeper periodically purges processed outbox entries older
// than Retention, resolving the spec's outbox-retention open question —
// grounded on the teacher's pkg/cleanup periodic-purge idiom.
type RetentionSweeper struct {
	q         *storage.Queries
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	once      sync.Once
	wg        sync.WaitGroup
	log       *slog.Logger
}

// NewRetentionSweeper constructs a sweeper that runs every interval,
// deleting processed entries older than retention.
func NewRetentionSweeper(q *storage.Queries, interval, retention time.Duration) *RetentionSweeper {
	return &RetentionSweeper{
		q:         q,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
		log:       slog.With("component", "outbox.retention"),
	}
}

// Start begins the sweep loop in a background goroutine.
func (s *RetentionSweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *RetentionSweeper) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *RetentionSweeper) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.retention)
			n, err := s.q.PurgeProcessedOutboxEntries(ctx, cutoff)
			if err != nil {
				s.log.Error("outbox retention sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("purged processed outbox entries", "count", n, "cutoff", cutoff)
			}
		}
	}
}
