package models

import (
	"time"
)

// WagerStatus represents the state of a wager
type WagerStatus string

const (
	WagerStatusPending WagerStatus = "pending"
	WagerStatusWon     WagerStatus = "won"
	WagerStatusLost    WagerStatus = "lost"
)

// Wager represents one account's stake on one side of one market.
// At most one pending wager may exist per (account, market) pair.
type Wager struct {
	ID              string      `db:"id"`
	AccountID       string      `db:"account_id"`
	MarketID        string      `db:"market_id"`
	Direction       Direction   `db:"direction"`
	Amount          int64       `db:"amount"`
	PotentialPayout int64       `db:"potential_payout"` // display-only estimate from placement time
	Status          WagerStatus `db:"status"`
	ActualPayout    int64       `db:"actual_payout"`
	Claimed         bool        `db:"claimed"`
	ClaimedAt       *time.Time  `db:"claimed_at"`
	SettledAt       *time.Time  `db:"settled_at"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

// IsPending checks if the wager is awaiting market resolution
func (w *Wager) IsPending() bool {
	return w.Status == WagerStatusPending
}

// IsWon checks if the wager is settled as a winner
func (w *Wager) IsWon() bool {
	return w.Status == WagerStatusWon
}

// IsClaimable checks if the wager has an unclaimed winning payout
func (w *Wager) IsClaimable() bool {
	return w.Status == WagerStatusWon && !w.Claimed
}
