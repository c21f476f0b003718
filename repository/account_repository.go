package repository

import (
	"context"
	"errors"
	"fmt"

	"predictionarena/database"
	"predictionarena/models"
	"predictionarena/service"

	"github.com/jackc/pgx/v5"
)

// AccountRepository implements the service.AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

const accountColumns = `
	id, balance, points, total_wins, total_losses,
	current_streak, longest_streak, total_volume, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID,
		&a.Balance,
		&a.Points,
		&a.TotalWins,
		&a.TotalLosses,
		&a.CurrentStreak,
		&a.LongestStreak,
		&a.TotalVolume,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}

	return account, nil
}

// Create creates a new account with the initial balance
func (r *AccountRepository) Create(ctx context.Context, id string, initialBalance int64) (*models.Account, error) {
	query := `
		INSERT INTO accounts (id, balance)
		VALUES ($1, $2)
		RETURNING` + accountColumns

	account, err := scanAccount(r.q.QueryRow(ctx, query, id, initialBalance))
	if err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", id, err)
	}

	return account, nil
}

// AddBalance credits an account atomically and returns the balance after
// the credit. The returned balance is the row's authoritative value, so
// audit entries built from it stay correct under concurrent mutations.
func (r *AccountRepository) AddBalance(ctx context.Context, id string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, service.ErrInvalidAmount
	}

	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`

	var balance int64
	err := r.q.QueryRow(ctx, query, amount, id).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, service.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add balance for account %s: %w", id, err)
	}

	return balance, nil
}

// DeductBalance debits an account atomically and returns the balance after
// the debit. The balance check and the write are a single conditional
// statement so concurrent debits cannot overdraw.
func (r *AccountRepository) DeductBalance(ctx context.Context, id string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, service.ErrInvalidAmount
	}

	query := `
		UPDATE accounts
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`

	var balance int64
	err := r.q.QueryRow(ctx, query, amount, id).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		account, err := r.GetByID(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("failed to check account %s: %w", id, err)
		}
		if account == nil {
			return 0, service.ErrAccountNotFound
		}
		return 0, service.ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("failed to deduct balance for account %s: %w", id, err)
	}

	return balance, nil
}

// AddPoints increments the non-transferable points score
func (r *AccountRepository) AddPoints(ctx context.Context, id string, amount int64) error {
	if amount <= 0 {
		return service.ErrInvalidAmount
	}

	query := `
		UPDATE accounts
		SET points = points + $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to add points for account %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return service.ErrAccountNotFound
	}

	return nil
}

// ApplyWinStats records a settled win: win count, streak extension,
// longest-streak high-water mark and wagered volume
func (r *AccountRepository) ApplyWinStats(ctx context.Context, id string, volume int64) error {
	query := `
		UPDATE accounts
		SET total_wins = total_wins + 1,
		    current_streak = current_streak + 1,
		    longest_streak = GREATEST(longest_streak, current_streak + 1),
		    total_volume = total_volume + $1,
		    updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, volume, id)
	if err != nil {
		return fmt.Errorf("failed to apply win stats for account %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return service.ErrAccountNotFound
	}

	return nil
}

// ApplyLossStats records a settled loss: loss count, streak reset and
// wagered volume
func (r *AccountRepository) ApplyLossStats(ctx context.Context, id string, volume int64) error {
	query := `
		UPDATE accounts
		SET total_losses = total_losses + 1,
		    current_streak = 0,
		    total_volume = total_volume + $1,
		    updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.q.Exec(ctx, query, volume, id)
	if err != nil {
		return fmt.Errorf("failed to apply loss stats for account %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return service.ErrAccountNotFound
	}

	return nil
}

// ListTopByPoints returns accounts ordered by points descending
func (r *AccountRepository) ListTopByPoints(ctx context.Context, limit int) ([]*models.Account, error) {
	query := `SELECT` + accountColumns + `
		FROM accounts
		ORDER BY points DESC, total_wins DESC, id ASC
		LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}
