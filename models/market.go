package models

import (
	"time"
)

// MarketStatus represents the lifecycle state of a market
type MarketStatus string

const (
	MarketStatusOpen MarketStatus = "open"
	// MarketStatusResolving is the exclusive claim a settler takes before
	// computing the outcome; exactly one worker may win the open->resolving
	// transition for a given market.
	MarketStatusResolving MarketStatus = "resolving"
	MarketStatusResolved  MarketStatus = "resolved"
)

// Direction represents one side of a binary market
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// IsValid checks that the direction is one of the two known sides
func (d Direction) IsValid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Opposite returns the other side of the market
func (d Direction) Opposite() Direction {
	if d == DirectionUp {
		return DirectionDown
	}
	return DirectionUp
}

// ThresholdDirection says which side of the threshold satisfies the market condition
type ThresholdDirection string

const (
	ThresholdAbove ThresholdDirection = "above"
	ThresholdBelow ThresholdDirection = "below"
)

// Market represents a binary-outcome proposition about an observed metric
// with a resolution deadline and two parimutuel pools
type Market struct {
	ID                 string              `db:"id"`
	Category           string              `db:"category"`
	Description        string              `db:"description"`
	Unit               string              `db:"unit"`
	SourceName         string              `db:"source_name"`
	CurrentValue       float64             `db:"current_value"`
	PreviousValue      float64             `db:"previous_value"`
	Threshold          *float64            `db:"threshold"`
	ThresholdDirection *ThresholdDirection `db:"threshold_direction"`
	TotalUpPool        int64               `db:"total_up_pool"`
	TotalDownPool      int64               `db:"total_down_pool"`
	ResolveAt          time.Time           `db:"resolve_at"`
	Status             MarketStatus        `db:"status"`
	ResolvedDirection  *Direction          `db:"resolved_direction"`
	ResolvedValue      *float64            `db:"resolved_value"`
	ResolvedAt         *time.Time          `db:"resolved_at"`
	CreatedAt          time.Time           `db:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
}

// MarketDefinition is the curation input for creating a market
type MarketDefinition struct {
	Category             string              `json:"category"`
	Description          string              `json:"description"`
	Unit                 string              `json:"unit"`
	SourceName           string              `json:"sourceName"`
	InitialValue         float64             `json:"initialValue"`
	Threshold            *float64            `json:"threshold,omitempty"`
	ThresholdDirection   *ThresholdDirection `json:"thresholdDirection,omitempty"`
	ResolveDurationHours int                 `json:"resolveDurationHours"`
}

// IsOpen checks if the market is still open
func (m *Market) IsOpen() bool {
	return m.Status == MarketStatusOpen
}

// IsResolved checks if the market has been resolved
func (m *Market) IsResolved() bool {
	return m.Status == MarketStatusResolved
}

// AcceptsWagers checks if new wagers may be placed. A market past its
// deadline refuses wagers even before the settler has claimed it.
func (m *Market) AcceptsWagers(now time.Time) bool {
	return m.Status == MarketStatusOpen && now.Before(m.ResolveAt)
}

// IsDue checks if an open market has passed its deadline
func (m *Market) IsDue(now time.Time) bool {
	return m.Status == MarketStatusOpen && !now.Before(m.ResolveAt)
}

// HasThreshold checks if the market resolves against a fixed threshold
// rather than the value trend
func (m *Market) HasThreshold() bool {
	return m.Threshold != nil && m.ThresholdDirection != nil
}

// TotalPool returns the combined stake on both sides
func (m *Market) TotalPool() int64 {
	return m.TotalUpPool + m.TotalDownPool
}

// PoolFor returns the stake on the given side
func (m *Market) PoolFor(dir Direction) int64 {
	if dir == DirectionUp {
		return m.TotalUpPool
	}
	return m.TotalDownPool
}

// TrendDirection returns the side matching the current value trend.
// A flat value counts as down.
func (m *Market) TrendDirection() Direction {
	if m.CurrentValue > m.PreviousValue {
		return DirectionUp
	}
	return DirectionDown
}

// ThresholdMet checks whether the given value satisfies the threshold condition
func (m *Market) ThresholdMet(value float64) bool {
	if !m.HasThreshold() {
		return false
	}
	if *m.ThresholdDirection == ThresholdAbove {
		return value > *m.Threshold
	}
	return value < *m.Threshold
}

// TrendingTowardThreshold checks whether the value is moving toward
// satisfying the threshold condition
func (m *Market) TrendingTowardThreshold() bool {
	if !m.HasThreshold() {
		return false
	}
	if *m.ThresholdDirection == ThresholdAbove {
		return m.CurrentValue > m.PreviousValue
	}
	return m.CurrentValue < m.PreviousValue
}

// MarketResolution represents the outcome of resolving one market
type MarketResolution struct {
	Market        *Market
	Direction     Direction
	ResolvedValue float64
	WinnersPaid   int
	LosersSettled int
	TotalPot      int64
}
