// Package oracle feeds observed values into the market catalog. The
// simulator stands in for live data sources in demo deployments.
package oracle

import (
	"context"
	"math/rand/v2"
	"time"

	"predictionarena/service"

	log "github.com/sirupsen/logrus"
)

// Simulator drives a bounded random walk over every open market's observed
// value, pushing a fresh sample each tick.
type Simulator struct {
	markets  service.MarketService
	interval time.Duration
	// maxStep is the largest relative move per tick, e.g. 0.02 for 2%.
	maxStep float64
	rng     *rand.Rand
}

// NewSimulator creates a simulator. rng may be nil, in which case the shared
// runtime source is used.
func NewSimulator(markets service.MarketService, interval time.Duration, maxStep float64, rng *rand.Rand) *Simulator {
	if maxStep <= 0 {
		maxStep = 0.02
	}
	return &Simulator{
		markets:  markets,
		interval: interval,
		maxStep:  maxStep,
		rng:      rng,
	}
}

// Start begins the simulation loop and returns a stop function. The loop
// also stops when ctx is cancelled.
func (s *Simulator) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", s.interval).Info("Oracle simulator started")

		for {
			select {
			case <-ctx.Done():
				log.Info("Oracle simulator shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Oracle simulator shutting down (stop requested)...")
				return
			case <-time.After(s.interval):
			}

			if err := s.tick(ctx); err != nil {
				log.Errorf("Error simulating oracle samples: %v", err)
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

func (s *Simulator) tick(ctx context.Context) error {
	markets, err := s.markets.GetOpenMarkets(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, market := range markets {
		next := s.step(market.CurrentValue)
		if err := s.markets.UpdateObservedValue(ctx, market.ID, next, now); err != nil {
			log.WithError(err).WithField("marketId", market.ID).Warn("Failed to push simulated sample")
		}
	}
	return nil
}

// step moves value by a uniform relative amount in [-maxStep, +maxStep].
// Values at zero get a small absolute nudge so the walk cannot stall there.
func (s *Simulator) step(value float64) float64 {
	delta := (s.float64()*2 - 1) * s.maxStep
	if value == 0 {
		return delta
	}
	return value * (1 + delta)
}

func (s *Simulator) float64() float64 {
	if s.rng != nil {
		return s.rng.Float64()
	}
	return rand.Float64()
}
