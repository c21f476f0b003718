package service

import (
	"context"
	"fmt"

	"predictionarena/events"
	"predictionarena/models"

	log "github.com/sirupsen/logrus"
)

// LeaderboardCache caches leaderboard projections. Implementations must
// tolerate misses; the accounts table is the source of truth.
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, bool, error)
	SetLeaderboard(ctx context.Context, limit int, entries []*models.LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

type statsService struct {
	uowFactory UnitOfWorkFactory
	cache      LeaderboardCache
}

// NewStatsService creates the leaderboard projection service. cache may be
// nil. When a bus is given the cache is invalidated whenever a market
// settles, so rankings never lag a settlement by more than one read.
func NewStatsService(uowFactory UnitOfWorkFactory, cache LeaderboardCache, bus *events.Bus) StatsService {
	s := &statsService{
		uowFactory: uowFactory,
		cache:      cache,
	}
	if cache != nil && bus != nil {
		bus.Subscribe(events.EventTypeMarketResolved, func(ctx context.Context, _ events.Event) {
			if err := cache.Invalidate(ctx); err != nil {
				log.WithError(err).Warn("Failed to invalidate leaderboard cache")
			}
		})
	}
	return s
}

// GetLeaderboard returns the top accounts ranked by points descending, with
// wins then account ID breaking ties.
func (s *statsService) GetLeaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	if s.cache != nil {
		entries, ok, err := s.cache.GetLeaderboard(ctx, limit)
		if err != nil {
			log.WithError(err).Warn("Leaderboard cache read failed")
		} else if ok {
			return entries, nil
		}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	accounts, err := uow.AccountRepository().ListTopByPoints(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top accounts: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	entries := make([]*models.LeaderboardEntry, 0, len(accounts))
	for i, account := range accounts {
		entries = append(entries, &models.LeaderboardEntry{
			Rank:          i + 1,
			AccountID:     account.ID,
			Points:        account.Points,
			Balance:       account.Balance,
			TotalWins:     account.TotalWins,
			TotalLosses:   account.TotalLosses,
			CurrentStreak: account.CurrentStreak,
			LongestStreak: account.LongestStreak,
			TotalVolume:   account.TotalVolume,
			WinRate:       account.WinRate(),
		})
	}

	if s.cache != nil {
		if err := s.cache.SetLeaderboard(ctx, limit, entries); err != nil {
			log.WithError(err).Warn("Leaderboard cache write failed")
		}
	}
	return entries, nil
}
