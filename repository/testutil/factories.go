package testutil

import (
	"time"

	"predictionarena/models"

	"github.com/google/uuid"
)

// NewTestMarket creates an open directional market resolving in an hour.
func NewTestMarket() *models.Market {
	return &models.Market{
		ID:            uuid.NewString(),
		Category:      "crypto",
		Description:   "BTC price trend",
		Unit:          "usd",
		SourceName:    "coingecko",
		CurrentValue:  50000,
		PreviousValue: 49500,
		ResolveAt:     time.Now().UTC().Add(time.Hour).Truncate(time.Microsecond),
		Status:        models.MarketStatusOpen,
	}
}

// NewTestThresholdMarket creates an open market resolving against a fixed
// threshold.
func NewTestThresholdMarket(threshold float64, direction models.ThresholdDirection) *models.Market {
	market := NewTestMarket()
	market.Description = "BTC above threshold"
	market.Threshold = &threshold
	market.ThresholdDirection = &direction
	return market
}

// NewTestWager creates a pending wager for the given account and market.
func NewTestWager(accountID, marketID string, direction models.Direction, amount int64) *models.Wager {
	return &models.Wager{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		MarketID:        marketID,
		Direction:       direction,
		Amount:          amount,
		PotentialPayout: amount * 2,
		Status:          models.WagerStatusPending,
	}
}

// NewTestBalanceHistory creates a balance history entry for the account.
func NewTestBalanceHistory(accountID string, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		AccountID:       accountID,
		BalanceBefore:   100000,
		BalanceAfter:    90000,
		ChangeAmount:    -10000,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}
