package supervisor

import (
	"fmt"
	"sync"
)

// runLocks enforces "a given mission has at most one active supervisor
// run at a time" (spec §4.3), generalised from the same
// mission-scoped-mutex-registry idiom as internal/missionstate/locks.go.
type runLocks struct {
	mu      sync.Mutex
	running map[string]bool
}

func newRunLocks() *runLocks {
	return &runLocks{running: make(map[string]bool)}
}

// acquire returns an error if a run is already active for missionID,
// otherwise marks it active and returns a release func.
func (r *runLocks) acquire(missionID string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[missionID] {
		return nil, fmt.Errorf("supervisor run already active for mission %s", missionID)
	}
	r.running[missionID] = true
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.running, missionID)
	}, nil
}
