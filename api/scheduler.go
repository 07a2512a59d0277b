/*
scheduler.go - Automated closing-day sweep scheduler

PURPOSE:
  Periodically runs the all-branches weekly sync sweep so bonus records
  stay current without manual triggers. The sweep itself is idempotent:
  re-running it on the same day converges to the same records, and frozen
  buckets are refused without being touched.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick sweeps the bucket of "today" across all active branches
  - A failure on one branch never blocks the others
  - Skips nothing itself; the orchestrator reports per-branch outcomes

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSweepScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - bonus/sync.go: Orchestrator.Sweep
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// SweepScheduler runs the closing-day sweep on a fixed interval.
type SweepScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(handler *Handler) *SweepScheduler {
	return &SweepScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	log.Printf("[Scheduler] Started with check interval: %v", ss.CheckInterval)
}

// Stop stops the scheduler.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.sweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.sweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) sweep() {
	ctx := context.Background()
	now := ss.Handler.Now()

	log.Printf("[Scheduler] Running weekly sync sweep at %v", now)

	result, err := ss.Handler.Orchestrator.Sweep(ctx, now, "system")
	if err != nil {
		log.Printf("[Scheduler] Sweep error: %v", err)
		return
	}

	if result.Attempted > 0 {
		log.Printf("[Scheduler] Completed: %d attempted, %d succeeded, %d failed",
			result.Attempted, result.Succeeded, result.Failed)
	}
	for _, r := range result.Results {
		if !r.Synced && r.Reason != "" {
			log.Printf("[Scheduler] %s skipped: %s", r.Bucket, r.Reason)
		}
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.sweep()
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (ss *SweepScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(ss.CheckInterval)
}
