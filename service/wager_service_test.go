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

func testWagerParams() WagerParams {
	return WagerParams{
		MinWager: 10,
		MaxWager: 100000,
		Payout:   DefaultPayoutParams(),
	}
}

// stubLedger satisfies LedgerService for wager tests without reaching a
// database.
type stubLedger struct {
	account *models.Account
	err     error
}

func (s *stubLedger) GetOrCreateAccount(ctx context.Context, accountID string) (*models.Account, error) {
	return s.account, s.err
}

func (s *stubLedger) Deposit(ctx context.Context, accountID string, amount int64) (*models.Account, error) {
	panic("not used")
}

func (s *stubLedger) Withdraw(ctx context.Context, accountID string, amount int64) (*models.Account, error) {
	panic("not used")
}

func (s *stubLedger) GetHistory(ctx context.Context, accountID string, limit int) ([]*models.BalanceHistory, error) {
	panic("not used")
}

func openMarket(id string) *models.Market {
	return &models.Market{
		ID:            id,
		Status:        models.MarketStatusOpen,
		TotalUpPool:   1000,
		TotalDownPool: 4000,
		ResolveAt:     time.Now().UTC().Add(time.Hour),
	}
}

func TestWagerService_PlaceWager(t *testing.T) {
	ctx := context.Background()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockMarketRepo := new(MockMarketRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)
	mockUoW.SetRepositories(mockAccountRepo, mockMarketRepo, mockWagerRepo, mockHistoryRepo)
	bus := &RecordingEventPublisher{}
	mockUoW.SetEventBus(bus)

	ledger := &stubLedger{account: &models.Account{ID: "alice", Balance: 10000}}
	svc := NewWagerService(mockFactory, ledger, testWagerParams())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockMarketRepo.On("GetByID", ctx, "m1").Return(openMarket("m1"), nil)
	mockWagerRepo.On("GetPendingByAccountAndMarket", ctx, "alice", "m1").Return(nil, nil)
	mockAccountRepo.On("DeductBalance", ctx, "alice", int64(100)).Return(int64(9900), nil)
	mockMarketRepo.On("AddToPool", ctx, "m1", models.DirectionUp, int64(100)).Return(nil)

	mockWagerRepo.On("Create", ctx, mock.MatchedBy(func(w *models.Wager) bool {
		return w.AccountID == "alice" &&
			w.MarketID == "m1" &&
			w.Direction == models.DirectionUp &&
			w.Amount == 100 &&
			w.Status == models.WagerStatusPending &&
			w.PotentialPayout > 0
	})).Return(nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.AccountID == "alice" &&
			h.BalanceBefore == 10000 &&
			h.BalanceAfter == 9900 &&
			h.ChangeAmount == -100 &&
			h.TransactionType == models.TransactionTypeWagerStake
	})).Return(nil)

	wager, err := svc.PlaceWager(ctx, "alice", "m1", models.DirectionUp, 100)

	assert.NoError(t, err)
	assert.NotNil(t, wager)

	// Estimate uses the pools with this stake included:
	// 100/1100 of 5100 after 5% fee -> 440.
	assert.Equal(t, int64(440), wager.PotentialPayout)

	var sawPlaced bool
	for _, ev := range bus.Events {
		if _, ok := ev.(events.WagerPlacedEvent); ok {
			sawPlaced = true
		}
	}
	assert.True(t, sawPlaced)

	mockWagerRepo.AssertExpectations(t)
	mockHistoryRepo.AssertExpectations(t)
}

func TestWagerService_PlaceWager_AmountBounds(t *testing.T) {
	ctx := context.Background()
	ledger := &stubLedger{account: &models.Account{ID: "alice", Balance: 10000}}

	tests := []struct {
		name    string
		amount  int64
		wantErr error
	}{
		{"zero", 0, ErrInvalidAmount},
		{"negative", -5, ErrInvalidAmount},
		{"below minimum", 5, ErrBelowMinimum},
		{"above maximum", 200000, ErrAboveMaximum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockUoW := new(MockUnitOfWork)
			mockFactory := new(MockUnitOfWorkFactory)
			mockAccountRepo := new(MockAccountRepository)
			mockMarketRepo := new(MockMarketRepository)
			mockWagerRepo := new(MockWagerRepository)
			mockUoW.SetRepositories(mockAccountRepo, mockMarketRepo, mockWagerRepo, nil)

			svc := NewWagerService(mockFactory, ledger, testWagerParams())

			// Bounds are checked after the market and position checks,
			// never reaching the debit.
			mockFactory.On("Create").Return(mockUoW)
			mockUoW.On("Begin", ctx).Return(nil)
			mockUoW.On("Rollback").Return(nil)
			mockMarketRepo.On("GetByID", ctx, "m1").Return(openMarket("m1"), nil)
			mockWagerRepo.On("GetPendingByAccountAndMarket", ctx, "alice", "m1").Return(nil, nil)

			_, err := svc.PlaceWager(ctx, "alice", "m1", models.DirectionUp, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
			mockAccountRepo.AssertNotCalled(t, "DeductBalance", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestWagerService_PlaceWager_InvalidDirection(t *testing.T) {
	ctx := context.Background()
	mockFactory := new(MockUnitOfWorkFactory)
	ledger := &stubLedger{account: &models.Account{ID: "alice", Balance: 10000}}
	svc := NewWagerService(mockFactory, ledger, testWagerParams())

	_, err := svc.PlaceWager(ctx, "alice", "m1", "sideways", 100)
	assert.ErrorIs(t, err, ErrInvalidDirection)
	mockFactory.AssertNotCalled(t, "Create")
}

func TestWagerService_PlaceWager_MarketPastDeadline(t *testing.T) {
	ctx := context.Background()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockMarketRepo := new(MockMarketRepository)
	mockUoW.SetRepositories(nil, mockMarketRepo, nil, nil)

	ledger := &stubLedger{account: &models.Account{ID: "alice", Balance: 10000}}
	svc := NewWagerService(mockFactory, ledger, testWagerParams())

	// Still open in the table but past its deadline: refuses wagers even
	// before the settler claims it.
	market := openMarket("m1")
	market.ResolveAt = time.Now().UTC().Add(-time.Minute)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockMarketRepo.On("GetByID", ctx, "m1").Return(market, nil)

	// The amount is also below the minimum; the market state wins.
	_, err := svc.PlaceWager(ctx, "alice", "m1", models.DirectionUp, 5)
	assert.ErrorIs(t, err, ErrMarketNotOpen)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestWagerService_PlaceWager_DuplicatePosition(t *testing.T) {
	ctx := context.Background()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockMarketRepo := new(MockMarketRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockUoW.SetRepositories(nil, mockMarketRepo, mockWagerRepo, nil)

	ledger := &stubLedger{account: &models.Account{ID: "alice", Balance: 10000}}
	svc := NewWagerService(mockFactory, ledger, testWagerParams())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockMarketRepo.On("GetByID", ctx, "m1").Return(openMarket("m1"), nil)
	mockWagerRepo.On("GetPendingByAccountAndMarket", ctx, "alice", "m1").
		Return(&models.Wager{ID: "w0", Status: models.WagerStatusPending}, nil)

	_, err := svc.PlaceWager(ctx, "alice", "m1", models.DirectionDown, 100)
	assert.ErrorIs(t, err, ErrDuplicatePosition)
}

func TestWagerService_PlaceWager_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockMarketRepo := new(MockMarketRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockUoW.SetRepositories(mockAccountRepo, mockMarketRepo, mockWagerRepo, nil)

	ledger := &stubLedger{account: &models.Account{ID: "alice", Balance: 50}}
	svc := NewWagerService(mockFactory, ledger, testWagerParams())

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockMarketRepo.On("GetByID", ctx, "m1").Return(openMarket("m1"), nil)
	mockWagerRepo.On("GetPendingByAccountAndMarket", ctx, "alice", "m1").Return(nil, nil)
	mockAccountRepo.On("DeductBalance", ctx, "alice", int64(100)).Return(int64(0), ErrInsufficientBalance)

	_, err := svc.PlaceWager(ctx, "alice", "m1", models.DirectionUp, 100)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	mockUoW.AssertNotCalled(t, "Commit")
}

func TestWagerService_ClaimPayout(t *testing.T) {
	ctx := context.Background()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockHistoryRepo := new(MockBalanceHistoryRepository)
	mockUoW.SetRepositories(mockAccountRepo, nil, mockWagerRepo, mockHistoryRepo)

	svc := NewWagerService(mockFactory, &stubLedger{}, testWagerParams())

	won := &models.Wager{
		ID:           "w1",
		AccountID:    "alice",
		MarketID:     "m1",
		Status:       models.WagerStatusWon,
		ActualPayout: 440,
	}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockWagerRepo.On("GetByID", ctx, "w1").Return(won, nil)
	mockWagerRepo.On("MarkClaimed", ctx, "w1", mock.AnythingOfType("time.Time")).Return(true, nil)
	mockAccountRepo.On("AddBalance", ctx, "alice", int64(440)).Return(int64(10340), nil)

	mockHistoryRepo.On("Record", ctx, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.BalanceBefore == 9900 &&
			h.BalanceAfter == 10340 &&
			h.ChangeAmount == 440 &&
			h.TransactionType == models.TransactionTypeWagerPayout
	})).Return(nil)

	wager, err := svc.ClaimPayout(ctx, "w1")

	assert.NoError(t, err)
	assert.True(t, wager.Claimed)
	mockWagerRepo.AssertExpectations(t)
	mockAccountRepo.AssertExpectations(t)
}

func TestWagerService_ClaimPayout_SecondClaimRejected(t *testing.T) {
	ctx := context.Background()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockWagerRepo := new(MockWagerRepository)
	mockUoW.SetRepositories(mockAccountRepo, nil, mockWagerRepo, nil)

	svc := NewWagerService(mockFactory, &stubLedger{}, testWagerParams())

	won := &models.Wager{ID: "w1", AccountID: "alice", Status: models.WagerStatusWon, ActualPayout: 440}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockWagerRepo.On("GetByID", ctx, "w1").Return(won, nil)
	// Conditional flip already happened in another request.
	mockWagerRepo.On("MarkClaimed", ctx, "w1", mock.AnythingOfType("time.Time")).Return(false, nil)

	_, err := svc.ClaimPayout(ctx, "w1")

	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	mockAccountRepo.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything, mock.Anything)
}

func TestWagerService_ClaimPayout_NotAWinner(t *testing.T) {
	ctx := context.Background()
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockWagerRepo := new(MockWagerRepository)
	mockUoW.SetRepositories(nil, nil, mockWagerRepo, nil)

	svc := NewWagerService(mockFactory, &stubLedger{}, testWagerParams())

	tests := []struct {
		name    string
		wager   *models.Wager
		wantErr error
	}{
		{"pending wager", &models.Wager{ID: "w1", Status: models.WagerStatusPending}, ErrNotAWinner},
		{"lost wager", &models.Wager{ID: "w1", Status: models.WagerStatusLost}, ErrNotAWinner},
		{"unknown wager", nil, ErrWagerNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockFactory.ExpectedCalls = nil
			mockUoW.ExpectedCalls = nil
			mockWagerRepo.ExpectedCalls = nil

			mockFactory.On("Create").Return(mockUoW)
			mockUoW.On("Begin", ctx).Return(nil)
			mockUoW.On("Rollback").Return(nil)
			if tt.wager == nil {
				mockWagerRepo.On("GetByID", ctx, "w1").Return(nil, nil)
			} else {
				mockWagerRepo.On("GetByID", ctx, "w1").Return(tt.wager, nil)
			}

			_, err := svc.ClaimPayout(ctx, "w1")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
