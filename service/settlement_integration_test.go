package service_test

import (
	"context"
	"testing"
	"time"

	"predictionarena/events"
	"predictionarena/models"
	"predictionarena/repository"
	"predictionarena/repository/testutil"
	"predictionarena/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newArenaServices(t *testing.T) (service.LedgerService, service.MarketService, service.WagerService, service.ResolutionService, service.StatsService, *testutil.TestDatabase) {
	testDB := testutil.SetupTestDatabase(t)

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(testDB.DB, eventBus)

	payout := service.DefaultPayoutParams()
	points := service.PointsParams{BasePoints: 50, VolumePointsBps: 100, StreakBonus: 25}

	ledger := service.NewLedgerService(uowFactory, 100000)
	markets := service.NewMarketService(uowFactory, []string{"coingecko"}, nil, nil)
	wagers := service.NewWagerService(uowFactory, ledger, service.WagerParams{
		MinWager: 10,
		MaxWager: 100000,
		Payout:   payout,
	})
	resolution := service.NewResolutionService(uowFactory, service.DeterministicDecider{}, payout, points)
	stats := service.NewStatsService(uowFactory, nil, eventBus)

	return ledger, markets, wagers, resolution, stats, testDB
}

func TestWagerLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ledger, markets, wagers, resolution, stats, _ := newArenaServices(t)
	ctx := context.Background()

	// Open a directional market resolving on the value trend.
	market, err := markets.CreateMarket(ctx, models.MarketDefinition{
		Category:             "crypto",
		Description:          "BTC next hour",
		Unit:                 "usd",
		SourceName:           "coingecko",
		InitialValue:         50000,
		ResolveDurationHours: 1,
	})
	require.NoError(t, err)

	// Accounts are provisioned on first wager with the demo grant.
	aliceWager, err := wagers.PlaceWager(ctx, "alice", market.ID, models.DirectionUp, 1000)
	require.NoError(t, err)
	bobWager, err := wagers.PlaceWager(ctx, "bob", market.ID, models.DirectionDown, 4000)
	require.NoError(t, err)

	alice, err := ledger.GetOrCreateAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(99000), alice.Balance)

	// Pools reflect both stakes.
	market, err = markets.GetMarket(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), market.TotalUpPool)
	assert.Equal(t, int64(4000), market.TotalDownPool)

	// A second pending wager on the same market is rejected.
	_, err = wagers.PlaceWager(ctx, "alice", market.ID, models.DirectionUp, 100)
	assert.ErrorIs(t, err, service.ErrDuplicatePosition)

	// Drive the observed value up so the trend resolves up, then force the
	// deadline by resolving at a future instant.
	require.NoError(t, markets.UpdateObservedValue(ctx, market.ID, 52000, time.Now().UTC()))

	future := time.Now().UTC().Add(2 * time.Hour)
	result, err := resolution.ResolveMarket(ctx, market.ID, future)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionUp, result.Direction)
	assert.Equal(t, 1, result.WinnersPaid)
	assert.Equal(t, 1, result.LosersSettled)
	assert.Equal(t, int64(5000), result.TotalPot)

	// Second resolution attempt fails: the market is already resolved.
	_, err = resolution.ResolveMarket(ctx, market.ID, future)
	assert.ErrorIs(t, err, service.ErrMarketAlreadyResolved)

	// Alice held the whole winning pool: 5000 post-fee would be 4750 at
	// multiplier 4.75, within the clamp.
	settled, err := wagers.GetWagersForAccount(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, settled, 1)
	assert.Equal(t, models.WagerStatusWon, settled[0].Status)
	assert.Equal(t, int64(4750), settled[0].ActualPayout)

	// Claim pays once.
	claimed, err := wagers.ClaimPayout(ctx, aliceWager.ID)
	require.NoError(t, err)
	assert.True(t, claimed.Claimed)

	_, err = wagers.ClaimPayout(ctx, aliceWager.ID)
	assert.ErrorIs(t, err, service.ErrAlreadyClaimed)

	alice, err = ledger.GetOrCreateAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(103750), alice.Balance)
	assert.Equal(t, 1, alice.TotalWins)
	assert.Equal(t, 1, alice.CurrentStreak)

	// Bob's losing wager has nothing to claim.
	_, err = wagers.ClaimPayout(ctx, bobWager.ID)
	assert.ErrorIs(t, err, service.ErrNotAWinner)

	bob, err := ledger.GetOrCreateAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(96000), bob.Balance)
	assert.Equal(t, 1, bob.TotalLosses)
	assert.Equal(t, 0, bob.CurrentStreak)

	// Winner tops the leaderboard.
	entries, err := stats.GetLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "alice", entries[0].AccountID)
	assert.Equal(t, int64(60), entries[0].Points)

	// The audit trail covers grant, stake and payout.
	history, err := ledger.GetHistory(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.TransactionTypeWagerPayout, history[0].TransactionType)
	assert.Equal(t, models.TransactionTypeWagerStake, history[1].TransactionType)
	assert.Equal(t, models.TransactionTypeInitial, history[2].TransactionType)
}

func TestResolveDueMarkets_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	_, markets, wagers, resolution, _, _ := newArenaServices(t)
	ctx := context.Background()

	market, err := markets.CreateMarket(ctx, models.MarketDefinition{
		Category:             "crypto",
		Description:          "ETH next hour",
		Unit:                 "usd",
		SourceName:           "coingecko",
		InitialValue:         3000,
		ResolveDurationHours: 1,
	})
	require.NoError(t, err)

	_, err = wagers.PlaceWager(ctx, "alice", market.ID, models.DirectionDown, 500)
	require.NoError(t, err)

	// Not due yet: the batch resolves nothing.
	resolved, err := resolution.ResolveDueMarkets(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)

	// Past the deadline the batch picks it up; flat value resolves down.
	resolved, err = resolution.ResolveDueMarkets(ctx, time.Now().UTC().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	got, err := markets.GetMarket(ctx, market.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MarketStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedDirection)
	assert.Equal(t, models.DirectionDown, *got.ResolvedDirection)
}
