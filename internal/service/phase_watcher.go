package service

import (
	"context"
	"sync"
	"time"

	"fotochallenge-api/internal/domain"
	"fotochallenge-api/internal/store"
	"fotochallenge-api/pkg/logger"
)

// TickInterval is how often challenge phases are re-derived from the
// clock. Phase is never cached across time; the tick only exists so
// transitions become visible (and get logged) without any client action.
const TickInterval = 10 * time.Second

// PhaseWatcher periodically recomputes every challenge's phase and logs
// transitions (upload -> voting -> results).
type PhaseWatcher struct {
	store *store.Store
	clock Clock
	log   *logger.Logger

	mu        sync.Mutex
	isRunning bool
	stop      chan struct{}
	done      chan struct{}
	lastPhase map[string]domain.Phase
}

// NewPhaseWatcher creates a phase watcher over the given store
func NewPhaseWatcher(st *store.Store, clock Clock, log *logger.Logger) *PhaseWatcher {
	return &PhaseWatcher{
		store:     st,
		clock:     clock,
		log:       log,
		lastPhase: make(map[string]domain.Phase),
	}
}

// Start begins the periodic phase sweep. Idempotent.
func (w *PhaseWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return nil
	}
	w.isRunning = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})

	// Prime the transition map so a restart does not report every
	// existing challenge as freshly transitioned.
	w.sweep()

	go w.run()
	w.log.Info("Phase watcher started")
	return nil
}

// Stop halts the sweep and waits for the loop to exit
func (w *PhaseWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	close(w.stop)
	done := w.done
	w.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	w.log.Info("Phase watcher stopped")
	return nil
}

func (w *PhaseWatcher) run() {
	defer close(w.done)
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			w.sweep()
			w.mu.Unlock()
		case <-w.stop:
			return
		}
	}
}

// sweep recomputes phases and logs any transition since the last sweep.
// Caller holds w.mu.
func (w *PhaseWatcher) sweep() {
	now := w.clock()
	for _, c := range w.store.Challenges() {
		phase := c.PhaseAt(now)
		if prev, seen := w.lastPhase[c.ID]; seen && prev != phase {
			w.log.WithFields(map[string]interface{}{
				"challenge_id": c.ID,
				"title":        c.Title,
				"from":         prev,
				"to":           phase,
			}).Info("Challenge phase transition")
		}
		w.lastPhase[c.ID] = phase
	}
}
