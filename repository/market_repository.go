package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"predictionarena/database"
	"predictionarena/models"

	"github.com/jackc/pgx/v5"
)

// MarketRepository implements the service.MarketRepository interface
type MarketRepository struct {
	q queryable
}

// NewMarketRepository creates a new market repository
func NewMarketRepository(db *database.DB) *MarketRepository {
	return &MarketRepository{q: db.Pool}
}

// newMarketRepositoryWithTx creates a new market repository with a transaction
func newMarketRepositoryWithTx(tx queryable) *MarketRepository {
	return &MarketRepository{q: tx}
}

const marketColumns = `
	id, category, description, unit, source_name,
	current_value, previous_value, threshold, threshold_direction,
	total_up_pool, total_down_pool, resolve_at, status,
	resolved_direction, resolved_value, resolved_at, created_at, updated_at`

func scanMarket(row pgx.Row) (*models.Market, error) {
	var m models.Market
	err := row.Scan(
		&m.ID,
		&m.Category,
		&m.Description,
		&m.Unit,
		&m.SourceName,
		&m.CurrentValue,
		&m.PreviousValue,
		&m.Threshold,
		&m.ThresholdDirection,
		&m.TotalUpPool,
		&m.TotalDownPool,
		&m.ResolveAt,
		&m.Status,
		&m.ResolvedDirection,
		&m.ResolvedValue,
		&m.ResolvedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create persists a new market
func (r *MarketRepository) Create(ctx context.Context, market *models.Market) error {
	query := `
		INSERT INTO markets (
			id, category, description, unit, source_name,
			current_value, previous_value, threshold, threshold_direction,
			resolve_at, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		market.ID,
		market.Category,
		market.Description,
		market.Unit,
		market.SourceName,
		market.CurrentValue,
		market.PreviousValue,
		market.Threshold,
		market.ThresholdDirection,
		market.ResolveAt,
		market.Status,
	).Scan(&market.CreatedAt, &market.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create market %s: %w", market.ID, err)
	}

	return nil
}

// GetByID retrieves a market by its ID
func (r *MarketRepository) GetByID(ctx context.Context, id string) (*models.Market, error) {
	query := `SELECT` + marketColumns + ` FROM markets WHERE id = $1`

	market, err := scanMarket(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market %s: %w", id, err)
	}

	return market, nil
}

// ListOpen returns all open markets ordered by deadline
func (r *MarketRepository) ListOpen(ctx context.Context) ([]*models.Market, error) {
	query := `SELECT` + marketColumns + `
		FROM markets
		WHERE status = 'open'
		ORDER BY resolve_at ASC`

	return r.listMarkets(ctx, query)
}

// ListDue returns open markets whose deadline has passed
func (r *MarketRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Market, error) {
	query := `SELECT` + marketColumns + `
		FROM markets
		WHERE status = 'open' AND resolve_at <= $1
		ORDER BY resolve_at ASC`

	return r.listMarkets(ctx, query, now)
}

func (r *MarketRepository) listMarkets(ctx context.Context, query string, args ...any) ([]*models.Market, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	defer rows.Close()

	var markets []*models.Market
	for rows.Next() {
		market, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, market)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate markets: %w", err)
	}

	return markets, nil
}

// UpdateObservedValue shifts the current value to previous and records the
// new sample. Only legal while the market is open; returns false when no
// open market row was updated.
func (r *MarketRepository) UpdateObservedValue(ctx context.Context, id string, value float64) (bool, error) {
	query := `
		UPDATE markets
		SET previous_value = current_value, current_value = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'open'
	`

	result, err := r.q.Exec(ctx, query, value, id)
	if err != nil {
		return false, fmt.Errorf("failed to update observed value for market %s: %w", id, err)
	}

	return result.RowsAffected() > 0, nil
}

// AddToPool adds stake to one side's pool of an open market
func (r *MarketRepository) AddToPool(ctx context.Context, id string, direction models.Direction, amount int64) error {
	column := "total_down_pool"
	if direction == models.DirectionUp {
		column = "total_up_pool"
	}

	query := fmt.Sprintf(`
		UPDATE markets
		SET %s = %s + $1, updated_at = NOW()
		WHERE id = $2 AND status = 'open'
	`, column, column)

	result, err := r.q.Exec(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to add to pool for market %s: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("market %s is not open for pool updates", id)
	}

	return nil
}

// ClaimForResolution atomically transitions open -> resolving and returns
// the market row as frozen by the claim. The conditional update is the
// mutual-exclusion point: exactly one caller observes a transition for a
// given market, and everyone else gets nil. The returned pools include
// every stake committed before the claim, so settlement must use these
// values rather than an earlier read of the row.
func (r *MarketRepository) ClaimForResolution(ctx context.Context, id string) (*models.Market, error) {
	query := `
		UPDATE markets
		SET status = 'resolving', updated_at = NOW()
		WHERE id = $1 AND status = 'open'
		RETURNING` + marketColumns

	market, err := scanMarket(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim market %s for resolution: %w", id, err)
	}

	return market, nil
}

// MarkResolved finalizes a claimed market with its outcome. Pools are
// frozen from this point on.
func (r *MarketRepository) MarkResolved(ctx context.Context, id string, direction models.Direction, resolvedValue float64, resolvedAt time.Time) error {
	query := `
		UPDATE markets
		SET status = 'resolved',
		    resolved_direction = $1,
		    resolved_value = $2,
		    resolved_at = $3,
		    updated_at = NOW()
		WHERE id = $4 AND status = 'resolving'
	`

	result, err := r.q.Exec(ctx, query, direction, resolvedValue, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark market %s resolved: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("market %s was not in resolving state", id)
	}

	return nil
}
