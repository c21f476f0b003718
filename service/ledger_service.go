package service

import (
	"context"
	"fmt"

	"predictionarena/events"
	"predictionarena/models"

	log "github.com/sirupsen/logrus"
)

type ledgerService struct {
	uowFactory      UnitOfWorkFactory
	startingBalance int64
}

// NewLedgerService creates a ledger service. New accounts are seeded with
// startingBalance minor units on first reference.
func NewLedgerService(uowFactory UnitOfWorkFactory, startingBalance int64) LedgerService {
	return &ledgerService{
		uowFactory:      uowFactory,
		startingBalance: startingBalance,
	}
}

// GetOrCreateAccount retrieves an account, creating it with the demo
// starting balance and an initial audit entry on first reference.
func (s *ledgerService) GetOrCreateAccount(ctx context.Context, accountID string) (*models.Account, error) {
	if accountID == "" {
		return nil, ErrAccountNotFound
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account != nil {
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return account, nil
	}

	account, err = uow.AccountRepository().Create(ctx, accountID, s.startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	err = recordBalanceChange(ctx, uow, &models.BalanceHistory{
		AccountID:       accountID,
		BalanceBefore:   0,
		BalanceAfter:    s.startingBalance,
		ChangeAmount:    s.startingBalance,
		TransactionType: models.TransactionTypeInitial,
	})
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.AccountCreatedEvent{
		AccountID:      accountID,
		InitialBalance: s.startingBalance,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"accountId":      accountID,
		"initialBalance": s.startingBalance,
	}).Info("Created account")

	return account, nil
}

// Deposit credits an account.
func (s *ledgerService) Deposit(ctx context.Context, accountID string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.adjustBalance(ctx, accountID, amount, models.TransactionTypeDeposit)
}

// Withdraw debits an account, failing when the balance does not cover the
// amount.
func (s *ledgerService) Withdraw(ctx context.Context, accountID string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.adjustBalance(ctx, accountID, -amount, models.TransactionTypeWithdraw)
}

func (s *ledgerService) adjustBalance(ctx context.Context, accountID string, delta int64, txType models.TransactionType) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	// The audit row is built from the balance the update itself returned,
	// not the earlier read, so interleaved mutations cannot skew it.
	var newBalance int64
	if delta >= 0 {
		newBalance, err = uow.AccountRepository().AddBalance(ctx, accountID, delta)
	} else {
		newBalance, err = uow.AccountRepository().DeductBalance(ctx, accountID, -delta)
	}
	if err != nil {
		return nil, err
	}

	err = recordBalanceChange(ctx, uow, &models.BalanceHistory{
		AccountID:       accountID,
		BalanceBefore:   newBalance - delta,
		BalanceAfter:    newBalance,
		ChangeAmount:    delta,
		TransactionType: txType,
	})
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	account.Balance = newBalance
	return account, nil
}

// GetHistory returns the ledger audit trail for an account, newest first.
func (s *ledgerService) GetHistory(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	history, err := uow.BalanceHistoryRepository().GetByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return history, nil
}
