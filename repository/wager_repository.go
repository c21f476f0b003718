package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"predictionarena/database"
	"predictionarena/models"
	"predictionarena/service"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// WagerRepository implements the service.WagerRepository interface
type WagerRepository struct {
	q queryable
}

// NewWagerRepository creates a new wager repository
func NewWagerRepository(db *database.DB) *WagerRepository {
	return &WagerRepository{q: db.Pool}
}

// newWagerRepositoryWithTx creates a new wager repository with a transaction
func newWagerRepositoryWithTx(tx queryable) *WagerRepository {
	return &WagerRepository{q: tx}
}

const wagerColumns = `
	id, account_id, market_id, direction, amount, potential_payout,
	status, actual_payout, claimed, claimed_at, settled_at, created_at, updated_at`

func scanWager(row pgx.Row) (*models.Wager, error) {
	var w models.Wager
	err := row.Scan(
		&w.ID,
		&w.AccountID,
		&w.MarketID,
		&w.Direction,
		&w.Amount,
		&w.PotentialPayout,
		&w.Status,
		&w.ActualPayout,
		&w.Claimed,
		&w.ClaimedAt,
		&w.SettledAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create persists a new pending wager. The partial unique index on
// (account_id, market_id) WHERE status = 'pending' backstops the
// at-most-one-pending invariant under concurrent placements.
func (r *WagerRepository) Create(ctx context.Context, wager *models.Wager) error {
	query := `
		INSERT INTO wagers (id, account_id, market_id, direction, amount, potential_payout, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		wager.ID,
		wager.AccountID,
		wager.MarketID,
		wager.Direction,
		wager.Amount,
		wager.PotentialPayout,
		wager.Status,
	).Scan(&wager.CreatedAt, &wager.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.ErrDuplicatePosition
		}
		return fmt.Errorf("failed to create wager %s: %w", wager.ID, err)
	}

	return nil
}

// GetByID retrieves a wager by its ID
func (r *WagerRepository) GetByID(ctx context.Context, id string) (*models.Wager, error) {
	query := `SELECT` + wagerColumns + ` FROM wagers WHERE id = $1`

	wager, err := scanWager(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager %s: %w", id, err)
	}

	return wager, nil
}

// GetPendingByAccountAndMarket returns the pending wager for the pair, or nil
func (r *WagerRepository) GetPendingByAccountAndMarket(ctx context.Context, accountID, marketID string) (*models.Wager, error) {
	query := `SELECT` + wagerColumns + `
		FROM wagers
		WHERE account_id = $1 AND market_id = $2 AND status = 'pending'`

	wager, err := scanWager(r.q.QueryRow(ctx, query, accountID, marketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending wager for account %s on market %s: %w", accountID, marketID, err)
	}

	return wager, nil
}

// ListByAccount returns wagers for an account, newest first
func (r *WagerRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Wager, error) {
	query := `SELECT` + wagerColumns + `
		FROM wagers
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.listWagers(ctx, query, accountID, limit)
}

// ListPendingByMarket returns all pending wagers on a market
func (r *WagerRepository) ListPendingByMarket(ctx context.Context, marketID string) ([]*models.Wager, error) {
	query := `SELECT` + wagerColumns + `
		FROM wagers
		WHERE market_id = $1 AND status = 'pending'
		ORDER BY created_at ASC`

	return r.listWagers(ctx, query, marketID)
}

func (r *WagerRepository) listWagers(ctx context.Context, query string, args ...any) ([]*models.Wager, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*models.Wager
	for rows.Next() {
		wager, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, wager)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wagers: %w", err)
	}

	return wagers, nil
}

// Settle finalizes a pending wager with its outcome
func (r *WagerRepository) Settle(ctx context.Context, id string, status models.WagerStatus, actualPayout int64, settledAt time.Time) error {
	query := `
		UPDATE wagers
		SET status = $1, actual_payout = $2, settled_at = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'pending'
	`

	result, err := r.q.Exec(ctx, query, status, actualPayout, settledAt, id)
	if err != nil {
		return fmt.Errorf("failed to settle wager %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("wager %s was not pending", id)
	}

	return nil
}

// MarkClaimed atomically flags a won, unclaimed wager as claimed. The
// conditional write makes claim retries safe: only one attempt observes a
// transition.
func (r *WagerRepository) MarkClaimed(ctx context.Context, id string, claimedAt time.Time) (bool, error) {
	query := `
		UPDATE wagers
		SET claimed = TRUE, claimed_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'won' AND claimed = FALSE
	`

	result, err := r.q.Exec(ctx, query, claimedAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark wager %s claimed: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}
