package service

import (
	"math/rand/v2"

	"predictionarena/models"
)

// OutcomeDecider determines the winning side of a due market from its
// final observed state.
type OutcomeDecider interface {
	Decide(market *models.Market) models.Direction
}

// DeterministicDecider resolves markets strictly from the recorded samples:
// threshold markets from whether the final value satisfies the condition,
// directional markets from the value trend. A flat trend resolves down.
type DeterministicDecider struct{}

func (DeterministicDecider) Decide(market *models.Market) models.Direction {
	if market.HasThreshold() {
		if market.ThresholdMet(market.CurrentValue) {
			return models.DirectionUp
		}
		return models.DirectionDown
	}
	return market.TrendDirection()
}

// SimulatedDecider draws the outcome randomly with a bias toward the
// observed state, for demo deployments where live feeds are too slow to be
// interesting. Threshold markets favor the side the value is trending
// toward at 60/40; directional markets favor the current trend at 55/45.
type SimulatedDecider struct {
	rng *rand.Rand
}

// NewSimulatedDecider creates a simulated decider. rng may be nil, in which
// case the shared runtime source is used.
func NewSimulatedDecider(rng *rand.Rand) *SimulatedDecider {
	return &SimulatedDecider{rng: rng}
}

func (d *SimulatedDecider) Decide(market *models.Market) models.Direction {
	if market.HasThreshold() {
		favored := models.DirectionDown
		if market.TrendingTowardThreshold() {
			favored = models.DirectionUp
		}
		return d.draw(favored, 0.60)
	}
	return d.draw(market.TrendDirection(), 0.55)
}

func (d *SimulatedDecider) draw(favored models.Direction, p float64) models.Direction {
	if d.float64() < p {
		return favored
	}
	return favored.Opposite()
}

func (d *SimulatedDecider) float64() float64 {
	if d.rng != nil {
		return d.rng.Float64()
	}
	return rand.Float64()
}
