package service

import (
	"context"
	"fmt"

	"predictionarena/events"
	"predictionarena/models"
)

// recordBalanceChange writes an audit row for a balance mutation and queues a
// balance change event on the transaction's bus. The balance mutation itself
// is the caller's responsibility; this only records it.
func recordBalanceChange(ctx context.Context, uow UnitOfWork, entry *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		AccountID:       entry.AccountID,
		OldBalance:      entry.BalanceBefore,
		NewBalance:      entry.BalanceAfter,
		TransactionType: entry.TransactionType,
		ChangeAmount:    entry.ChangeAmount,
	})
	return nil
}
