package models

// LeaderboardEntry represents an account's entry in the points leaderboard.
// It is a pure projection over account stats and is never mutated directly.
type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	AccountID     string  `json:"accountId"`
	Points        int64   `json:"points"`
	Balance       int64   `json:"balance"`
	TotalWins     int     `json:"totalWins"`
	TotalLosses   int     `json:"totalLosses"`
	CurrentStreak int     `json:"currentStreak"`
	LongestStreak int     `json:"longestStreak"`
	TotalVolume   int64   `json:"totalVolume"`
	WinRate       float64 `json:"winRate"` // percentage 0-100
}
