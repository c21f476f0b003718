package service

import (
	"context"
	"time"

	"predictionarena/events"
	"predictionarena/models"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetByID retrieves an account by its ID, returning nil when absent
	GetByID(ctx context.Context, id string) (*models.Account, error)

	// Create creates a new account with the initial balance
	Create(ctx context.Context, id string, initialBalance int64) (*models.Account, error)

	// AddBalance credits an account atomically and returns the resulting
	// balance
	AddBalance(ctx context.Context, id string, amount int64) (int64, error)

	// DeductBalance debits an account atomically and returns the resulting
	// balance, or ErrInsufficientBalance when the balance does not cover
	// the amount
	DeductBalance(ctx context.Context, id string, amount int64) (int64, error)

	// AddPoints increments the non-transferable points score
	AddPoints(ctx context.Context, id string, amount int64) error

	// ApplyWinStats records a settled win: win count, streak, longest
	// streak and wagered volume
	ApplyWinStats(ctx context.Context, id string, volume int64) error

	// ApplyLossStats records a settled loss: loss count, streak reset and
	// wagered volume
	ApplyLossStats(ctx context.Context, id string, volume int64) error

	// ListTopByPoints returns accounts ordered by points descending
	ListTopByPoints(ctx context.Context, limit int) ([]*models.Account, error)
}

// MarketRepository defines the interface for market data access
type MarketRepository interface {
	// Create persists a new market
	Create(ctx context.Context, market *models.Market) error

	// GetByID retrieves a market by its ID, returning nil when absent
	GetByID(ctx context.Context, id string) (*models.Market, error)

	// ListOpen returns all open markets ordered by deadline
	ListOpen(ctx context.Context) ([]*models.Market, error)

	// ListDue returns open markets whose deadline has passed
	ListDue(ctx context.Context, now time.Time) ([]*models.Market, error)

	// UpdateObservedValue shifts current value to previous and records the
	// new sample; only legal while the market is open. Returns false when
	// no open market row was updated.
	UpdateObservedValue(ctx context.Context, id string, value float64) (bool, error)

	// AddToPool adds stake to one side's pool of an open market
	AddToPool(ctx context.Context, id string, direction models.Direction, amount int64) error

	// ClaimForResolution atomically transitions open -> resolving and
	// returns the market row as frozen by the claim. Returns nil when the
	// market was not open, i.e. another worker won the claim or the market
	// is already resolved.
	ClaimForResolution(ctx context.Context, id string) (*models.Market, error)

	// MarkResolved finalizes a claimed market with its outcome
	MarkResolved(ctx context.Context, id string, direction models.Direction, resolvedValue float64, resolvedAt time.Time) error
}

// WagerRepository defines the interface for wager data access
type WagerRepository interface {
	// Create persists a new pending wager
	Create(ctx context.Context, wager *models.Wager) error

	// GetByID retrieves a wager by its ID, returning nil when absent
	GetByID(ctx context.Context, id string) (*models.Wager, error)

	// GetPendingByAccountAndMarket returns the pending wager for the pair,
	// or nil when there is none
	GetPendingByAccountAndMarket(ctx context.Context, accountID, marketID string) (*models.Wager, error)

	// ListByAccount returns wagers for an account, newest first
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Wager, error)

	// ListPendingByMarket returns all pending wagers on a market
	ListPendingByMarket(ctx context.Context, marketID string) ([]*models.Wager, error)

	// Settle finalizes a pending wager with its outcome
	Settle(ctx context.Context, id string, status models.WagerStatus, actualPayout int64, settledAt time.Time) error

	// MarkClaimed atomically flags a won, unclaimed wager as claimed.
	// Returns false when the wager was already claimed or is not won.
	MarkClaimed(ctx context.Context, id string, claimedAt time.Time) (bool, error)
}

// BalanceHistoryRepository defines the interface for the ledger audit trail
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByAccount returns balance history for an account, newest first
	GetByAccount(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// Repository getters
	AccountRepository() AccountRepository
	MarketRepository() MarketRepository
	WagerRepository() WagerRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// LedgerService defines the interface for balance operations
type LedgerService interface {
	// GetOrCreateAccount retrieves an account, creating it with the demo
	// starting balance on first reference
	GetOrCreateAccount(ctx context.Context, accountID string) (*models.Account, error)

	// Deposit credits an account
	Deposit(ctx context.Context, accountID string, amount int64) (*models.Account, error)

	// Withdraw debits an account, failing on insufficient balance
	Withdraw(ctx context.Context, accountID string, amount int64) (*models.Account, error)

	// GetHistory returns the ledger audit trail for an account
	GetHistory(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error)
}

// MarketService defines the interface for market catalog operations
type MarketService interface {
	// CreateMarket validates a curation definition and opens a market
	CreateMarket(ctx context.Context, def models.MarketDefinition) (*models.Market, error)

	// UpdateObservedValue records a new oracle sample for an open market
	UpdateObservedValue(ctx context.Context, marketID string, value float64, observedAt time.Time) error

	// GetObservedValue returns the latest observed value for a market,
	// served from the cache when warm
	GetObservedValue(ctx context.Context, marketID string) (float64, error)

	// GetOpenMarkets returns all open markets
	GetOpenMarkets(ctx context.Context) ([]*models.Market, error)

	// GetMarket retrieves a market by ID
	GetMarket(ctx context.Context, marketID string) (*models.Market, error)
}

// WagerService defines the interface for wager placement and claiming
type WagerService interface {
	// PlaceWager validates and records a prediction, debiting the ledger
	PlaceWager(ctx context.Context, accountID, marketID string, direction models.Direction, amount int64) (*models.Wager, error)

	// ClaimPayout credits a winning payout to the account exactly once
	ClaimPayout(ctx context.Context, wagerID string) (*models.Wager, error)

	// GetWagersForAccount returns an account's wagers, newest first
	GetWagersForAccount(ctx context.Context, accountID string, limit int) ([]*models.Wager, error)
}

// ResolutionService defines the interface for settling due markets
type ResolutionService interface {
	// ResolveDueMarkets settles every open market past its deadline,
	// returning the number resolved. Per-market failures are logged and
	// retried on the next tick, never aborting the batch.
	ResolveDueMarkets(ctx context.Context, now time.Time) (int, error)

	// ResolveMarket settles a single market, failing when it is not due
	// or another worker holds the resolution claim
	ResolveMarket(ctx context.Context, marketID string, now time.Time) (*models.MarketResolution, error)
}

// StatsService defines the interface for leaderboard projections
type StatsService interface {
	// GetLeaderboard returns the top accounts ranked by points
	GetLeaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}
