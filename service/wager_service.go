package service

import (
	"context"
	"fmt"
	"time"

	"predictionarena/events"
	"predictionarena/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// WagerParams bound wager amounts and drive the placement-time payout
// estimate.
type WagerParams struct {
	MinWager int64
	MaxWager int64
	Payout   PayoutParams
}

type wagerService struct {
	uowFactory UnitOfWorkFactory
	ledger     LedgerService
	params     WagerParams
}

// NewWagerService creates a wager service. The ledger service is used to
// auto-provision demo accounts on first wager.
func NewWagerService(uowFactory UnitOfWorkFactory, ledger LedgerService, params WagerParams) WagerService {
	return &wagerService{
		uowFactory: uowFactory,
		ledger:     ledger,
		params:     params,
	}
}

// PlaceWager validates and records a prediction, debiting the stake from the
// account and adding it to the chosen side's pool, all in one transaction.
func (s *wagerService) PlaceWager(ctx context.Context, accountID, marketID string, direction models.Direction, amount int64) (*models.Wager, error) {
	if !direction.IsValid() {
		return nil, ErrInvalidDirection
	}

	// Provisions the account outside the wager transaction; creation is
	// idempotent so a concurrent first wager is harmless.
	if _, err := s.ledger.GetOrCreateAccount(ctx, accountID); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	market, err := uow.MarketRepository().GetByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	if market == nil {
		return nil, ErrMarketNotFound
	}

	now := time.Now().UTC()
	if !market.AcceptsWagers(now) {
		return nil, ErrMarketNotOpen
	}

	existing, err := uow.WagerRepository().GetPendingByAccountAndMarket(ctx, accountID, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending wager: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicatePosition
	}

	// Amount checks come after the market and position checks so a caller
	// on a closed market learns about the market first.
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < s.params.MinWager {
		return nil, ErrBelowMinimum
	}
	if amount > s.params.MaxWager {
		return nil, ErrAboveMaximum
	}

	newBalance, err := uow.AccountRepository().DeductBalance(ctx, accountID, amount)
	if err != nil {
		return nil, err
	}
	if err := uow.MarketRepository().AddToPool(ctx, marketID, direction, amount); err != nil {
		return nil, fmt.Errorf("failed to add stake to pool: %w", err)
	}

	// Display estimate against the pools as they will stand with this
	// stake included. Settlement recomputes against the frozen pools.
	estimate := ComputePayout(amount, market.PoolFor(direction)+amount, market.TotalPool()+amount, s.params.Payout)

	wager := &models.Wager{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		MarketID:        marketID,
		Direction:       direction,
		Amount:          amount,
		PotentialPayout: estimate,
		Status:          models.WagerStatusPending,
	}
	if err := uow.WagerRepository().Create(ctx, wager); err != nil {
		return nil, err
	}

	wagerID := wager.ID
	err = recordBalanceChange(ctx, uow, &models.BalanceHistory{
		AccountID:       accountID,
		BalanceBefore:   newBalance + amount,
		BalanceAfter:    newBalance,
		ChangeAmount:    -amount,
		TransactionType: models.TransactionTypeWagerStake,
		TransactionMetadata: map[string]any{
			"marketId":  marketID,
			"direction": string(direction),
		},
		RelatedID:   &wagerID,
		RelatedType: relatedType(models.RelatedTypeWager),
	})
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.WagerPlacedEvent{
		WagerID:   wager.ID,
		AccountID: accountID,
		MarketID:  marketID,
		Direction: direction,
		Amount:    amount,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"wagerId":   wager.ID,
		"accountId": accountID,
		"marketId":  marketID,
		"direction": direction,
		"amount":    amount,
	}).Info("Placed wager")

	return wager, nil
}

// ClaimPayout credits a winning payout to the account. The claim flag flips
// atomically, so repeated claims return ErrAlreadyClaimed and the payout is
// credited at most once.
func (s *wagerService) ClaimPayout(ctx context.Context, wagerID string) (*models.Wager, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wager, err := uow.WagerRepository().GetByID(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", err)
	}
	if wager == nil {
		return nil, ErrWagerNotFound
	}
	if wager.Status != models.WagerStatusWon {
		return nil, ErrNotAWinner
	}

	now := time.Now().UTC()
	claimed, err := uow.WagerRepository().MarkClaimed(ctx, wagerID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark wager claimed: %w", err)
	}
	if !claimed {
		return nil, ErrAlreadyClaimed
	}

	newBalance, err := uow.AccountRepository().AddBalance(ctx, wager.AccountID, wager.ActualPayout)
	if err != nil {
		return nil, err
	}

	err = recordBalanceChange(ctx, uow, &models.BalanceHistory{
		AccountID:       wager.AccountID,
		BalanceBefore:   newBalance - wager.ActualPayout,
		BalanceAfter:    newBalance,
		ChangeAmount:    wager.ActualPayout,
		TransactionType: models.TransactionTypeWagerPayout,
		TransactionMetadata: map[string]any{
			"marketId": wager.MarketID,
		},
		RelatedID:   &wagerID,
		RelatedType: relatedType(models.RelatedTypeWager),
	})
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.PayoutClaimedEvent{
		WagerID:   wagerID,
		AccountID: wager.AccountID,
		Payout:    wager.ActualPayout,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"wagerId":   wagerID,
		"accountId": wager.AccountID,
		"payout":    wager.ActualPayout,
	}).Info("Claimed payout")

	wager.Claimed = true
	wager.ClaimedAt = &now
	return wager, nil
}

// GetWagersForAccount returns an account's wagers, newest first.
func (s *wagerService) GetWagersForAccount(ctx context.Context, accountID string, limit int) ([]*models.Wager, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wagers, err := uow.WagerRepository().ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return wagers, nil
}

func relatedType(t models.RelatedType) *models.RelatedType {
	return &t
}
