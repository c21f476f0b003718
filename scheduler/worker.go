// Package scheduler runs the background loops that drive settlement and the
// demo oracle feed.
package scheduler

import (
	"context"
	"time"

	"predictionarena/service"

	log "github.com/sirupsen/logrus"
)

// ResolutionWorker periodically settles markets whose deadline has passed.
type ResolutionWorker struct {
	resolution service.ResolutionService
	interval   time.Duration
}

// NewResolutionWorker creates a resolution worker ticking at the given
// interval.
func NewResolutionWorker(resolution service.ResolutionService, interval time.Duration) *ResolutionWorker {
	return &ResolutionWorker{
		resolution: resolution,
		interval:   interval,
	}
}

// Start begins the resolution worker and returns a stop function. The worker
// also stops when ctx is cancelled. A batch failure is logged and retried on
// the next tick; the claim protocol makes concurrent workers safe.
func (w *ResolutionWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", w.interval).Info("Resolution worker started")

		for {
			resolved, err := w.resolution.ResolveDueMarkets(ctx, time.Now().UTC())
			if err != nil {
				log.Errorf("Error resolving due markets: %v", err)
			} else if resolved > 0 {
				log.WithField("resolved", resolved).Info("Settled due markets")
			}

			select {
			case <-ctx.Done():
				log.Info("Resolution worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Resolution worker shutting down (stop requested)...")
				return
			case <-time.After(w.interval):
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}
