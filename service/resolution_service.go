package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"predictionarena/events"
	"predictionarena/models"

	log "github.com/sirupsen/logrus"
)

// PointsParams drive the leaderboard points awarded on a winning wager.
type PointsParams struct {
	// BasePoints is the flat award for any win.
	BasePoints int64
	// VolumePointsBps awards points proportional to stake, in basis points
	// of the wagered amount.
	VolumePointsBps int64
	// StreakBonus is awarded per consecutive win beyond the first.
	StreakBonus int64
}

// WinPoints returns the points award for a win at the given streak length,
// where streak counts this win.
func (p PointsParams) WinPoints(amount int64, streak int) int64 {
	points := p.BasePoints + mulBps(amount, p.VolumePointsBps)
	if streak > 1 {
		points += p.StreakBonus * int64(streak-1)
	}
	return points
}

type resolutionService struct {
	uowFactory UnitOfWorkFactory
	decider    OutcomeDecider
	payout     PayoutParams
	points     PointsParams
}

// NewResolutionService creates the settlement service.
func NewResolutionService(uowFactory UnitOfWorkFactory, decider OutcomeDecider, payout PayoutParams, points PointsParams) ResolutionService {
	return &resolutionService{
		uowFactory: uowFactory,
		decider:    decider,
		payout:     payout,
		points:     points,
	}
}

// ResolveDueMarkets settles every open market past its deadline. A failure
// on one market is logged and does not abort the batch; the market stays
// open and is retried on the next tick.
func (s *resolutionService) ResolveDueMarkets(ctx context.Context, now time.Time) (int, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	due, err := uow.MarketRepository().ListDue(ctx, now)
	if err != nil {
		uow.Rollback()
		return 0, fmt.Errorf("failed to list due markets: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	resolved := 0
	for _, market := range due {
		resolution, err := s.ResolveMarket(ctx, market.ID, now)
		if err != nil {
			// Another worker winning the claim is normal operation.
			logFn := log.WithError(err).WithField("marketId", market.ID)
			if isClaimRace(err) {
				logFn.Debug("Skipped market claimed elsewhere")
			} else {
				logFn.Error("Failed to resolve market")
			}
			continue
		}
		resolved++

		log.WithFields(log.Fields{
			"marketId":  market.ID,
			"direction": resolution.Direction,
			"totalPot":  resolution.TotalPot,
			"winners":   resolution.WinnersPaid,
			"losers":    resolution.LosersSettled,
		}).Info("Resolved market")
	}
	return resolved, nil
}

func isClaimRace(err error) bool {
	return errors.Is(err, ErrMarketAlreadyResolving) || errors.Is(err, ErrMarketAlreadyResolved)
}

// ResolveMarket settles a single market: claims it, decides the outcome,
// pays winners from the frozen pools and records loser stats, all in one
// transaction. A crash before commit leaves the market open for retry.
func (s *resolutionService) ResolveMarket(ctx context.Context, marketID string, now time.Time) (*models.MarketResolution, error) {
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
	if market.IsResolved() {
		return nil, ErrMarketAlreadyResolved
	}
	if market.IsOpen() && !market.IsDue(now) {
		return nil, ErrMarketNotDue
	}

	// The claim returns the row it froze. Wagers committed between the
	// read above and the claim are in these pools but not in the earlier
	// snapshot, so settlement must work from the claimed row only.
	claimed, err := uow.MarketRepository().ClaimForResolution(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim market for resolution: %w", err)
	}
	if claimed == nil {
		return nil, ErrMarketAlreadyResolving
	}
	market = claimed

	direction := s.decider.Decide(market)
	resolvedValue := market.CurrentValue

	winningPool := market.PoolFor(direction)
	totalPool := market.TotalPool()

	wagers, err := uow.WagerRepository().ListPendingByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending wagers: %w", err)
	}

	resolution := &models.MarketResolution{
		Market:        market,
		Direction:     direction,
		ResolvedValue: resolvedValue,
		TotalPot:      totalPool,
	}

	for _, wager := range wagers {
		if wager.Direction == direction {
			if err := s.settleWin(ctx, uow, wager, winningPool, totalPool, now); err != nil {
				return nil, err
			}
			resolution.WinnersPaid++
		} else {
			if err := s.settleLoss(ctx, uow, wager, now); err != nil {
				return nil, err
			}
			resolution.LosersSettled++
		}
	}

	if err := uow.MarketRepository().MarkResolved(ctx, marketID, direction, resolvedValue, now); err != nil {
		return nil, fmt.Errorf("failed to mark market resolved: %w", err)
	}

	uow.EventBus().Publish(events.MarketResolvedEvent{
		MarketID:      marketID,
		Direction:     direction,
		ResolvedValue: resolvedValue,
		TotalPot:      totalPool,
		WinnersPaid:   resolution.WinnersPaid,
		LosersSettled: resolution.LosersSettled,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return resolution, nil
}

func (s *resolutionService) settleWin(ctx context.Context, uow UnitOfWork, wager *models.Wager, winningPool, totalPool int64, now time.Time) error {
	payout := ComputePayout(wager.Amount, winningPool, totalPool, s.payout)

	if err := uow.WagerRepository().Settle(ctx, wager.ID, models.WagerStatusWon, payout, now); err != nil {
		return fmt.Errorf("failed to settle winning wager %s: %w", wager.ID, err)
	}

	account, err := uow.AccountRepository().GetByID(ctx, wager.AccountID)
	if err != nil {
		return fmt.Errorf("failed to get account %s: %w", wager.AccountID, err)
	}
	if account == nil {
		return fmt.Errorf("wager %s references missing account %s", wager.ID, wager.AccountID)
	}

	if err := uow.AccountRepository().ApplyWinStats(ctx, wager.AccountID, wager.Amount); err != nil {
		return fmt.Errorf("failed to apply win stats: %w", err)
	}

	points := s.points.WinPoints(wager.Amount, account.CurrentStreak+1)
	if err := uow.AccountRepository().AddPoints(ctx, wager.AccountID, points); err != nil {
		return fmt.Errorf("failed to award points: %w", err)
	}
	return nil
}

func (s *resolutionService) settleLoss(ctx context.Context, uow UnitOfWork, wager *models.Wager, now time.Time) error {
	if err := uow.WagerRepository().Settle(ctx, wager.ID, models.WagerStatusLost, 0, now); err != nil {
		return fmt.Errorf("failed to settle losing wager %s: %w", wager.ID, err)
	}
	if err := uow.AccountRepository().ApplyLossStats(ctx, wager.AccountID, wager.Amount); err != nil {
		return fmt.Errorf("failed to apply loss stats: %w", err)
	}
	return nil
}
