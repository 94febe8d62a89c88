package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically reclaims sessions whose inactivity exceeds the
// threshold. Eviction is unconditional: it is not a caller-attributable
// action, so no ownership check applies.
type Sweeper struct {
	manager   *Manager
	threshold time.Duration
	interval  time.Duration
	logger    zerolog.Logger
	onEvict   func(sessionID string)
}

func NewSweeper(manager *Manager, interval, threshold time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	return &Sweeper{
		manager:   manager,
		threshold: threshold,
		interval:  interval,
		logger:    logger,
	}
}

// SetEvictHook registers a callback fired for every swept session, after the
// manager's own teardown hook has run.
func (sw *Sweeper) SetEvictHook(hook func(sessionID string)) {
	sw.onEvict = hook
}

// Start launches the sweep loop. The loop is serial, so at most one sweep
// runs at a time; it stops when ctx is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sw.Sweep()
			}
		}
	}()
}

// Sweep runs one pass. The id set is snapshotted up front, and each candidate
// is re-validated under its own lock, so sessions removed or touched while
// the pass runs are tolerated rather than errored on.
func (sw *Sweeper) Sweep() int {
	now := time.Now().UTC()
	evicted := 0

	sw.manager.mu.RLock()
	ids := make([]string, 0, len(sw.manager.sessions))
	for id := range sw.manager.sessions {
		ids = append(ids, id)
	}
	sw.manager.mu.RUnlock()

	for _, id := range ids {
		if !sw.manager.evictIfInactive(id, sw.threshold, now) {
			// Touched or already removed since the snapshot; not an error.
			continue
		}
		sw.logger.Info().Str("session_id", id).Msg("cleaned up inactive voice session")
		evicted++
		if sw.onEvict != nil {
			sw.onEvict(id)
		}
	}
	return evicted
}
