package service

import (
	"context"
	"testing"
	"time"

	"predictionarena/events"
	"predictionarena/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// fixedDecider always returns the configured direction.
type fixedDecider struct {
	direction models.Direction
}

func (d fixedDecider) Decide(*models.Market) models.Direction {
	return d.direction
}

func testPointsParams() PointsParams {
	return PointsParams{BasePoints: 50, VolumePointsBps: 100, StreakBonus: 25}
}

func dueMarket(id string) *models.Market {
	return &models.Market{
		ID:            id,
		Status:        models.MarketStatusOpen,
		CurrentValue:  105,
		PreviousValue: 100,
		TotalUpPool:   1100,
		TotalDownPool: 4000,
		ResolveAt:     time.Now().UTC().Add(-time.Minute),
	}
}

func TestResolutionService_ResolveMarket(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockMarketRepo := new(MockMarketRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockUoW.SetRepositories(mockAccountRepo, mockMarketRepo, mockWagerRepo, nil)
	bus := &RecordingEventPublisher{}
	mockUoW.SetEventBus(bus)

	svc := NewResolutionService(mockFactory, fixedDecider{models.DirectionUp}, DefaultPayoutParams(), testPointsParams())

	market := dueMarket("m1")
	wagers := []*models.Wager{
		{ID: "w1", AccountID: "alice", MarketID: "m1", Direction: models.DirectionUp, Amount: 100},
		{ID: "w2", AccountID: "bob", MarketID: "m1", Direction: models.DirectionUp, Amount: 1000},
		{ID: "w3", AccountID: "carol", MarketID: "m1", Direction: models.DirectionDown, Amount: 4000},
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockMarketRepo.On("GetByID", ctx, "m1").Return(market, nil)
	mockMarketRepo.On("ClaimForResolution", ctx, "m1").Return(market, nil)
	mockWagerRepo.On("ListPendingByMarket", ctx, "m1").Return(wagers, nil)

	// alice: 100/1100 of 5100 post-fee -> 440.
	mockWagerRepo.On("Settle", ctx, "w1", models.WagerStatusWon, int64(440), now).Return(nil)
	// bob: 1000/1100 -> 4404.
	mockWagerRepo.On("Settle", ctx, "w2", models.WagerStatusWon, int64(4404), now).Return(nil)
	mockWagerRepo.On("Settle", ctx, "w3", models.WagerStatusLost, int64(0), now).Return(nil)

	mockAccountRepo.On("GetByID", ctx, "alice").Return(&models.Account{ID: "alice", CurrentStreak: 0}, nil)
	mockAccountRepo.On("GetByID", ctx, "bob").Return(&models.Account{ID: "bob", CurrentStreak: 2}, nil)
	mockAccountRepo.On("ApplyWinStats", ctx, "alice", int64(100)).Return(nil)
	mockAccountRepo.On("ApplyWinStats", ctx, "bob", int64(1000)).Return(nil)
	// alice: 50 base + 1 volume, first win.
	mockAccountRepo.On("AddPoints", ctx, "alice", int64(51)).Return(nil)
	// bob: 50 + 10 volume + 2 streak bonuses at the new streak of 3.
	mockAccountRepo.On("AddPoints", ctx, "bob", int64(110)).Return(nil)
	mockAccountRepo.On("ApplyLossStats", ctx, "carol", int64(4000)).Return(nil)

	mockMarketRepo.On("MarkResolved", ctx, "m1", models.DirectionUp, 105.0, now).Return(nil)

	resolution, err := svc.ResolveMarket(ctx, "m1", now)

	assert.NoError(t, err)
	assert.Equal(t, models.DirectionUp, resolution.Direction)
	assert.Equal(t, 2, resolution.WinnersPaid)
	assert.Equal(t, 1, resolution.LosersSettled)
	assert.Equal(t, int64(5100), resolution.TotalPot)

	var sawResolved bool
	for _, ev := range bus.Events {
		if resolved, ok := ev.(events.MarketResolvedEvent); ok {
			sawResolved = true
			assert.Equal(t, "m1", resolved.MarketID)
			assert.Equal(t, models.DirectionUp, resolved.Direction)
		}
	}
	assert.True(t, sawResolved)

	mockMarketRepo.AssertExpectations(t)
	mockWagerRepo.AssertExpectations(t)
	mockAccountRepo.AssertExpectations(t)
}

func TestResolutionService_ResolveMarket_SettlesFromClaimedPools(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockMarketRepo := new(MockMarketRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockUoW.SetRepositories(mockAccountRepo, mockMarketRepo, mockWagerRepo, nil)

	svc := NewResolutionService(mockFactory, fixedDecider{models.DirectionUp}, DefaultPayoutParams(), testPointsParams())

	// A wager lands between the pre-claim read and the claim: the stale
	// read sees 1000 in the up pool, the claimed row carries 2000. Paying
	// from the stale pools would hand each winner 5700 and overdraw the
	// 5700 post-fee pot.
	stale := dueMarket("m1")
	stale.TotalUpPool = 1000
	stale.TotalDownPool = 4000

	frozen := dueMarket("m1")
	frozen.TotalUpPool = 2000
	frozen.TotalDownPool = 4000

	wagers := []*models.Wager{
		{ID: "w1", AccountID: "alice", MarketID: "m1", Direction: models.DirectionUp, Amount: 1000},
		{ID: "w2", AccountID: "dave", MarketID: "m1", Direction: models.DirectionUp, Amount: 1000},
		{ID: "w3", AccountID: "carol", MarketID: "m1", Direction: models.DirectionDown, Amount: 4000},
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockMarketRepo.On("GetByID", ctx, "m1").Return(stale, nil)
	mockMarketRepo.On("ClaimForResolution", ctx, "m1").Return(frozen, nil)
	mockWagerRepo.On("ListPendingByMarket", ctx, "m1").Return(wagers, nil)

	// 1000/2000 of the 5700 post-fee pot -> 2850 each; the two payouts
	// together spend exactly the pot.
	mockWagerRepo.On("Settle", ctx, "w1", models.WagerStatusWon, int64(2850), now).Return(nil)
	mockWagerRepo.On("Settle", ctx, "w2", models.WagerStatusWon, int64(2850), now).Return(nil)
	mockWagerRepo.On("Settle", ctx, "w3", models.WagerStatusLost, int64(0), now).Return(nil)

	mockAccountRepo.On("GetByID", ctx, "alice").Return(&models.Account{ID: "alice"}, nil)
	mockAccountRepo.On("GetByID", ctx, "dave").Return(&models.Account{ID: "dave"}, nil)
	mockAccountRepo.On("ApplyWinStats", ctx, "alice", int64(1000)).Return(nil)
	mockAccountRepo.On("ApplyWinStats", ctx, "dave", int64(1000)).Return(nil)
	mockAccountRepo.On("AddPoints", ctx, "alice", int64(60)).Return(nil)
	mockAccountRepo.On("AddPoints", ctx, "dave", int64(60)).Return(nil)
	mockAccountRepo.On("ApplyLossStats", ctx, "carol", int64(4000)).Return(nil)

	mockMarketRepo.On("MarkResolved", ctx, "m1", models.DirectionUp, 105.0, now).Return(nil)

	resolution, err := svc.ResolveMarket(ctx, "m1", now)

	assert.NoError(t, err)
	assert.Equal(t, int64(6000), resolution.TotalPot)
	mockWagerRepo.AssertExpectations(t)
	mockAccountRepo.AssertExpectations(t)
}

func TestResolutionService_ResolveMarket_ClaimLost(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockMarketRepo := new(MockMarketRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockUoW.SetRepositories(nil, mockMarketRepo, mockWagerRepo, nil)

	svc := NewResolutionService(mockFactory, fixedDecider{models.DirectionUp}, DefaultPayoutParams(), testPointsParams())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockMarketRepo.On("GetByID", ctx, "m1").Return(dueMarket("m1"), nil)
	// Another worker won the open -> resolving transition.
	mockMarketRepo.On("ClaimForResolution", ctx, "m1").Return(nil, nil)

	_, err := svc.ResolveMarket(ctx, "m1", now)

	assert.ErrorIs(t, err, ErrMarketAlreadyResolving)
	mockWagerRepo.AssertNotCalled(t, "ListPendingByMarket", mock.Anything, mock.Anything)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestResolutionService_ResolveMarket_StateChecks(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	notDue := dueMarket("m1")
	notDue.ResolveAt = now.Add(time.Hour)

	resolved := dueMarket("m1")
	resolved.Status = models.MarketStatusResolved

	tests := []struct {
		name    string
		market  *models.Market
		wantErr error
	}{
		{"not yet due", notDue, ErrMarketNotDue},
		{"already resolved", resolved, ErrMarketAlreadyResolved},
		{"unknown market", nil, ErrMarketNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUoW := new(MockUnitOfWork)
			mockFactory := new(MockUnitOfWorkFactory)
			mockMarketRepo := new(MockMarketRepository)
			mockUoW.SetRepositories(nil, mockMarketRepo, nil, nil)

			svc := NewResolutionService(mockFactory, fixedDecider{models.DirectionUp}, DefaultPayoutParams(), testPointsParams())

			mockFactory.On("Create").Return(mockUoW)
			mockUoW.On("Begin", ctx).Return(nil)
			mockUoW.On("Rollback").Return(nil)
			if tt.market == nil {
				mockMarketRepo.On("GetByID", ctx, "m1").Return(nil, nil)
			} else {
				mockMarketRepo.On("GetByID", ctx, "m1").Return(tt.market, nil)
			}

			_, err := svc.ResolveMarket(ctx, "m1", now)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolutionService_ResolveMarket_NoWinners(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockMarketRepo := new(MockMarketRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockUoW.SetRepositories(mockAccountRepo, mockMarketRepo, mockWagerRepo, nil)

	svc := NewResolutionService(mockFactory, fixedDecider{models.DirectionUp}, DefaultPayoutParams(), testPointsParams())

	market := dueMarket("m1")
	market.TotalUpPool = 0
	market.TotalDownPool = 4000

	wagers := []*models.Wager{
		{ID: "w1", AccountID: "carol", MarketID: "m1", Direction: models.DirectionDown, Amount: 4000},
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockMarketRepo.On("GetByID", ctx, "m1").Return(market, nil)
	mockMarketRepo.On("ClaimForResolution", ctx, "m1").Return(market, nil)
	mockWagerRepo.On("ListPendingByMarket", ctx, "m1").Return(wagers, nil)
	mockWagerRepo.On("Settle", ctx, "w1", models.WagerStatusLost, int64(0), now).Return(nil)
	mockAccountRepo.On("ApplyLossStats", ctx, "carol", int64(4000)).Return(nil)
	mockMarketRepo.On("MarkResolved", ctx, "m1", models.DirectionUp, 105.0, now).Return(nil)

	resolution, err := svc.ResolveMarket(ctx, "m1", now)

	assert.NoError(t, err)
	assert.Equal(t, 0, resolution.WinnersPaid)
	assert.Equal(t, 1, resolution.LosersSettled)
}

func TestResolutionService_ResolveDueMarkets_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	// The list transaction sees two due markets; the first one's settle
	// transaction fails at claim time, the second succeeds with no wagers.
	m1 := dueMarket("m1")
	m2 := dueMarket("m2")

	listUoW := new(MockUnitOfWork)
	listMarketRepo := new(MockMarketRepository)
	listUoW.SetRepositories(nil, listMarketRepo, nil, nil)
	listUoW.On("Begin", ctx).Return(nil)
	listUoW.On("Commit").Return(nil)
	listMarketRepo.On("ListDue", ctx, now).Return([]*models.Market{m1, m2}, nil)

	settleUoW := new(MockUnitOfWork)
	settleMarketRepo := new(MockMarketRepository)
	settleWagerRepo := new(MockWagerRepository)
	settleUoW.SetRepositories(nil, settleMarketRepo, settleWagerRepo, nil)
	settleUoW.On("Begin", ctx).Return(nil)
	settleUoW.On("Commit").Return(nil)
	settleUoW.On("Rollback").Return(nil)
	settleMarketRepo.On("GetByID", ctx, "m1").Return(m1, nil)
	settleMarketRepo.On("ClaimForResolution", ctx, "m1").Return(nil, nil)
	settleMarketRepo.On("GetByID", ctx, "m2").Return(m2, nil)
	settleMarketRepo.On("ClaimForResolution", ctx, "m2").Return(m2, nil)
	settleWagerRepo.On("ListPendingByMarket", ctx, "m2").Return([]*models.Wager{}, nil)
	settleMarketRepo.On("MarkResolved", ctx, "m2", mock.Anything, 105.0, now).Return(nil)

	mockFactory := new(MockUnitOfWorkFactory)
	mockFactory.On("Create").Return(listUoW).Once()
	mockFactory.On("Create").Return(settleUoW)

	svc := NewResolutionService(mockFactory, fixedDecider{models.DirectionUp}, DefaultPayoutParams(), testPointsParams())

	resolved, err := svc.ResolveDueMarkets(ctx, now)

	assert.NoError(t, err)
	assert.Equal(t, 1, resolved)
}

func TestDeterministicDecider(t *testing.T) {
	decider := DeterministicDecider{}

	t.Run("directional up trend", func(t *testing.T) {
		m := &models.Market{CurrentValue: 105, PreviousValue: 100}
		assert.Equal(t, models.DirectionUp, decider.Decide(m))
	})

	t.Run("directional flat resolves down", func(t *testing.T) {
		m := &models.Market{CurrentValue: 100, PreviousValue: 100}
		assert.Equal(t, models.DirectionDown, decider.Decide(m))
	})

	t.Run("threshold met", func(t *testing.T) {
		threshold := 60000.0
		dir := models.ThresholdAbove
		m := &models.Market{CurrentValue: 61000, Threshold: &threshold, ThresholdDirection: &dir}
		assert.Equal(t, models.DirectionUp, decider.Decide(m))
	})

	t.Run("threshold exactly at bound not met", func(t *testing.T) {
		threshold := 60000.0
		dir := models.ThresholdAbove
		m := &models.Market{CurrentValue: 60000, Threshold: &threshold, ThresholdDirection: &dir}
		assert.Equal(t, models.DirectionDown, decider.Decide(m))
	})

	t.Run("threshold below met", func(t *testing.T) {
		threshold := 10.0
		dir := models.ThresholdBelow
		m := &models.Market{CurrentValue: 5, Threshold: &threshold, ThresholdDirection: &dir}
		assert.Equal(t, models.DirectionUp, decider.Decide(m))
	})
}

func TestSimulatedDecider_ReturnsValidDirection(t *testing.T) {
	decider := NewSimulatedDecider(nil)
	m := &models.Market{CurrentValue: 105, PreviousValue: 100}

	for i := 0; i < 100; i++ {
		assert.True(t, decider.Decide(m).IsValid())
	}
}
