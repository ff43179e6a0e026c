package syncclient

import (
	"context"
	"errors"
	"time"

	"github.com/mkarpuk/finsync/internal/logger"
)

// Scheduler owns the periodic background sync. It is started on session
// start and stopped on teardown; a tick that lands while a cycle is in
// flight is dropped, never queued. Stop waits for a running cycle to
// finish rather than cancelling it.
type Scheduler struct {
	client   *Client
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates a scheduler running one cycle every interval.
func NewScheduler(client *Client, interval time.Duration) *Scheduler {
	return &Scheduler{
		client:   client,
		interval: interval,
	}
}

// Start launches the background loop. Starting an already-running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop terminates the loop and waits for a running cycle to complete.
// Stopping a never-started scheduler is a no-op.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
	s.stop = nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := s.client.PerformSync(ctx)
			switch {
			case errors.Is(err, ErrSyncInFlight):
				logger.Log.Debugw("sync tick dropped, cycle in flight")
			case err != nil:
				logger.Log.Errorw("local storage failure during sync", "error", err)
			default:
				logger.Log.Infow("sync cycle finished",
					"success", result.Success,
					"pulled", result.Pulled,
					"created", result.Pushed.Created,
					"updated", result.Pushed.Updated,
					"conflicts", result.Pushed.Conflicts,
				)
			}
		}
	}
}
