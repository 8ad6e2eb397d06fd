package service

import (
	"context"
	"testing"

	"kzcasino/config"
	"kzcasino/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPredictionFixture() (PredictionService, *memoryStore) {
	clock := newFixedClock()
	store := newMemoryStore(clock)
	return NewPredictionService(store, clock, config.NewTestConfig()), store
}

func createMockPredictionService() (PredictionService, *MockUnitOfWork, *MockAccountRepository, *MockPredictionRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockPredictionRepo := new(MockPredictionRepository)

	mockUoW.SetRepositories(mockAccountRepo, new(MockBalanceHistoryRepository), nil)
	mockUoW.SetPredictionRepository(mockPredictionRepo)
	mockUoW.SetEventBus(new(MockEventPublisher))
	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	return NewPredictionService(mockFactory, newFixedClock(), config.NewTestConfig()), mockUoW, mockAccountRepo, mockPredictionRepo
}

func TestPredictionService_SettledConcurrently(t *testing.T) {
	ctx := context.Background()
	existing := &models.Prediction{PredictorID: 2, TargetID: 1, Stake: 300, Choice: models.PredictionChoiceWin}

	t.Run("cancel refunds nothing once the row is gone", func(t *testing.T) {
		svc, mockUoW, mockAccountRepo, mockPredictionRepo := createMockPredictionService()
		mockAccountRepo.On("Ensure", ctx, int64(2), int64(2500)).Return(false, nil)
		mockAccountRepo.On("GetForUpdate", ctx, int64(2)).Return(&models.Account{DiscordID: 2, Balance: 500}, nil)
		mockPredictionRepo.On("Get", ctx, int64(2), int64(1)).Return(existing, nil)
		mockPredictionRepo.On("Delete", ctx, int64(2), int64(1)).Return(false, nil)

		refunded, err := svc.Cancel(ctx, 2, 1)

		assert.ErrorIs(t, err, ErrNotFound)
		assert.Zero(t, refunded)
		mockAccountRepo.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything, mock.Anything)
		mockUoW.AssertNotCalled(t, "Commit")
		assertAllMockExpectations(t, mockAccountRepo, mockPredictionRepo)
	})

	t.Run("replace refunds nothing once the row is gone", func(t *testing.T) {
		svc, mockUoW, mockAccountRepo, mockPredictionRepo := createMockPredictionService()
		mockAccountRepo.On("Ensure", ctx, int64(2), int64(2500)).Return(false, nil)
		mockAccountRepo.On("Ensure", ctx, int64(1), int64(2500)).Return(false, nil)
		mockAccountRepo.On("GetForUpdate", ctx, int64(2)).Return(&models.Account{DiscordID: 2, Balance: 500}, nil)
		mockPredictionRepo.On("Get", ctx, int64(2), int64(1)).Return(existing, nil)
		mockPredictionRepo.On("Delete", ctx, int64(2), int64(1)).Return(false, nil)

		prediction, err := svc.Place(ctx, 2, 1, 100, models.PredictionChoiceLose)

		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, prediction)
		mockAccountRepo.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything, mock.Anything)
		mockPredictionRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		mockUoW.AssertNotCalled(t, "Commit")
		assertAllMockExpectations(t, mockAccountRepo, mockPredictionRepo)
	})

	t.Run("resolve locks accounts in ascending order before reading predictions", func(t *testing.T) {
		svc, _, mockAccountRepo, mockPredictionRepo := createMockPredictionService()
		var order []int64
		mockPredictionRepo.On("GetPredictorIDsByTarget", ctx, int64(3)).Return([]int64{5, 1}, nil)
		for _, id := range []int64{1, 3, 5} {
			mockAccountRepo.On("GetForUpdate", ctx, id).
				Run(func(args mock.Arguments) { order = append(order, args.Get(1).(int64)) }).
				Return(&models.Account{DiscordID: id, Balance: 1000}, nil).Once()
		}
		mockPredictionRepo.On("GetByTarget", ctx, int64(3)).Return([]*models.Prediction{}, nil)

		resolution, err := svc.Resolve(ctx, 3, models.GameResultWin)

		require.NoError(t, err)
		assert.Empty(t, resolution.Logs)
		assert.Equal(t, []int64{1, 3, 5}, order)
		assertAllMockExpectations(t, mockAccountRepo, mockPredictionRepo)
	})
}

func TestPredictionService_Place(t *testing.T) {
	ctx := context.Background()

	t.Run("stake is debited up front", func(t *testing.T) {
		svc, store := newPredictionFixture()
		store.seed(1, 1000)
		store.seed(2, 500)

		prediction, err := svc.Place(ctx, 2, 1, 100, models.PredictionChoiceWin)

		require.NoError(t, err)
		assert.Equal(t, int64(100), prediction.Stake)
		assert.Equal(t, int64(400), store.balance(2))
	})

	t.Run("placing again replaces the open prediction", func(t *testing.T) {
		svc, store := newPredictionFixture()
		store.seed(1, 1000)
		store.seed(2, 500)

		_, err := svc.Place(ctx, 2, 1, 100, models.PredictionChoiceWin)
		require.NoError(t, err)
		_, err = svc.Place(ctx, 2, 1, 200, models.PredictionChoiceLose)
		require.NoError(t, err)

		open, err := svc.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, int64(200), open[0].Stake)
		assert.Equal(t, models.PredictionChoiceLose, open[0].Choice)
		assert.Equal(t, int64(300), store.balance(2))
	})

	t.Run("unaffordable replacement keeps the old prediction", func(t *testing.T) {
		svc, store := newPredictionFixture()
		store.seed(1, 1000)
		store.seed(2, 500)

		_, err := svc.Place(ctx, 2, 1, 100, models.PredictionChoiceWin)
		require.NoError(t, err)

		_, err = svc.Place(ctx, 2, 1, 600, models.PredictionChoiceWin)

		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, int64(400), store.balance(2))
		open, err := svc.ListOnTarget(ctx, 1)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, int64(100), open[0].Stake)
	})

	t.Run("invalid requests", func(t *testing.T) {
		svc, store := newPredictionFixture()
		store.seed(2, 500)
		house := config.NewTestConfig().HouseDiscordID

		_, err := svc.Place(ctx, 2, 2, 100, models.PredictionChoiceWin)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = svc.Place(ctx, 2, house, 100, models.PredictionChoiceWin)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = svc.Place(ctx, 2, 1, 0, models.PredictionChoiceWin)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = svc.Place(ctx, 2, 1, 100, "maybe")
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, int64(500), store.balance(2))
	})
}

func TestPredictionService_Cancel(t *testing.T) {
	ctx := context.Background()
	svc, store := newPredictionFixture()
	store.seed(1, 1000)
	store.seed(2, 500)

	_, err := svc.Place(ctx, 2, 1, 150, models.PredictionChoiceWin)
	require.NoError(t, err)

	refunded, err := svc.Cancel(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(150), refunded)
	assert.Equal(t, int64(500), store.balance(2))

	_, err = svc.Cancel(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPredictionService_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("correct predictors are paid by the target, wrong ones pay the target", func(t *testing.T) {
		svc, store := newPredictionFixture()
		store.seed(1, 1000)
		store.seed(2, 500)
		store.seed(3, 500)

		_, err := svc.Place(ctx, 2, 1, 100, models.PredictionChoiceWin)
		require.NoError(t, err)
		_, err = svc.Place(ctx, 3, 1, 50, models.PredictionChoiceLose)
		require.NoError(t, err)

		resolution, err := svc.Resolve(ctx, 1, models.GameResultWin)

		require.NoError(t, err)
		require.Len(t, resolution.Logs, 2)
		assert.True(t, resolution.Logs[0].Correct)
		assert.Equal(t, int64(100), resolution.Logs[0].PaidFromTarget)
		assert.False(t, resolution.Logs[1].Correct)

		assert.Equal(t, int64(950), store.balance(1))
		assert.Equal(t, int64(600), store.balance(2))
		assert.Equal(t, int64(450), store.balance(3))

		open, err := svc.ListOnTarget(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, open)
	})

	t.Run("payouts are capped by the target's running balance", func(t *testing.T) {
		svc, store := newPredictionFixture()
		store.seed(1, 30)
		store.seed(2, 500)
		store.seed(3, 500)

		_, err := svc.Place(ctx, 2, 1, 100, models.PredictionChoiceLose)
		require.NoError(t, err)
		_, err = svc.Place(ctx, 3, 1, 100, models.PredictionChoiceLose)
		require.NoError(t, err)

		resolution, err := svc.Resolve(ctx, 1, models.GameResultLoss)

		require.NoError(t, err)
		assert.Equal(t, int64(30), resolution.Logs[0].PaidFromTarget)
		assert.Zero(t, resolution.Logs[1].PaidFromTarget)
		assert.Zero(t, store.balance(1))
		assert.Equal(t, int64(530), store.balance(2))
		assert.Equal(t, int64(500), store.balance(3))
	})

	t.Run("a push leaves predictions open", func(t *testing.T) {
		svc, store := newPredictionFixture()
		store.seed(1, 1000)
		store.seed(2, 500)

		_, err := svc.Place(ctx, 2, 1, 100, models.PredictionChoiceWin)
		require.NoError(t, err)

		resolution, err := svc.Resolve(ctx, 1, models.GameResultPush)

		require.NoError(t, err)
		assert.Empty(t, resolution.Logs)
		open, err := svc.ListOnTarget(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, open, 1)
	})

	t.Run("resolution logs are visible to both sides", func(t *testing.T) {
		svc, store := newPredictionFixture()
		store.seed(1, 1000)
		store.seed(2, 500)

		_, err := svc.Place(ctx, 2, 1, 100, models.PredictionChoiceWin)
		require.NoError(t, err)
		_, err = svc.Resolve(ctx, 1, models.GameResultLoss)
		require.NoError(t, err)

		predictorLogs, err := svc.Logs(ctx, 2, 10)
		require.NoError(t, err)
		targetLogs, err := svc.Logs(ctx, 1, 10)
		require.NoError(t, err)
		assert.Len(t, predictorLogs, 1)
		assert.Len(t, targetLogs, 1)
		assert.Equal(t, int64(1100), store.balance(1))
	})
}

func TestPredictionService_ResolvedBySettlement(t *testing.T) {
	ctx := context.Background()
	clock := newFixedClock()
	store := newMemoryStore(clock)
	cfg := config.NewTestConfig()

	predictions := NewPredictionService(store, clock, cfg)
	settlement := NewSettlementService(store, newStaticParams(map[string]string{"coinflip_win_chance": "1"}), &scriptedRandom{floats: []float64{0.3}}, clock, nil, cfg)
	settlement.RegisterOutcomeHook(predictions)

	store.seed(1, 1000)
	store.seed(2, 500)
	_, err := predictions.Place(ctx, 2, 1, 100, models.PredictionChoiceWin)
	require.NoError(t, err)

	_, err = settlement.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 100})
	require.NoError(t, err)

	// 1000 - 100 + 195 - 100 paid to the predictor
	assert.Equal(t, int64(995), store.balance(1))
	assert.Equal(t, int64(600), store.balance(2))
}
