package models

import (
	"time"
)

// Account represents a wagering account with a currency balance and a
// non-transferable points score
type Account struct {
	ID            string    `db:"id"`
	Balance       int64     `db:"balance"`
	Points        int64     `db:"points"`
	TotalWins     int       `db:"total_wins"`
	TotalLosses   int       `db:"total_losses"`
	CurrentStreak int       `db:"current_streak"`
	LongestStreak int       `db:"longest_streak"`
	TotalVolume   int64     `db:"total_volume"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// CanAfford checks if the account balance covers the given amount
func (a *Account) CanAfford(amount int64) bool {
	return a.Balance >= amount
}

// TotalSettled returns the number of settled wagers for the account
func (a *Account) TotalSettled() int {
	return a.TotalWins + a.TotalLosses
}

// WinRate returns the win percentage (0-100) across settled wagers
func (a *Account) WinRate() float64 {
	settled := a.TotalSettled()
	if settled == 0 {
		return 0
	}
	return float64(a.TotalWins) / float64(settled) * 100
}
