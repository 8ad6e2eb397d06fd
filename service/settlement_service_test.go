package service

import (
	"context"
	"testing"

	"kzcasino/config"
	"kzcasino/events"
	"kzcasino/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type settlementFixture struct {
	service  SettlementService
	store    *memoryStore
	rng      *scriptedRandom
	progress *MockProgressHook
}

func newSettlementFixture(t *testing.T, overrides map[string]string) *settlementFixture {
	t.Helper()
	clock := newFixedClock()
	store := newMemoryStore(clock)
	rng := &scriptedRandom{}
	progress := new(MockProgressHook)
	progress.On("CreditProgress", mock.Anything, mock.Anything, ProgressKindGame, mock.Anything).Maybe()

	svc := NewSettlementService(store, newStaticParams(overrides), rng, clock, progress, config.NewTestConfig())
	return &settlementFixture{service: svc, store: store, rng: rng, progress: progress}
}

func TestSettlementService_Play(t *testing.T) {
	ctx := context.Background()

	t.Run("certain win credits stake and profit", func(t *testing.T) {
		f := newSettlementFixture(t, map[string]string{"coinflip_win_chance": "1", "coinflip_payout": "2"})
		f.store.seed(1, 1000)
		f.rng.floats = []float64{0.3}

		outcome, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 100})

		require.NoError(t, err)
		assert.Equal(t, models.GameResultWin, outcome.Result)
		assert.Equal(t, int64(200), outcome.Payout)
		assert.Equal(t, int64(100), outcome.Profit)
		assert.Equal(t, int64(1100), outcome.BalanceAfter)
		assert.Equal(t, int64(1100), f.store.balance(1))
		assert.Equal(t, []models.TransactionType{models.TransactionTypeGameStake, models.TransactionTypeGamePayout}, f.store.historyTypes(1))

		account := f.store.account(1)
		assert.Equal(t, int64(1), account.GamesPlayed)
		assert.Equal(t, int64(1), account.Wins)
		f.progress.AssertCalled(t, "CreditProgress", mock.Anything, int64(1), ProgressKindGame, int64(50))
	})

	t.Run("loss keeps the stake", func(t *testing.T) {
		f := newSettlementFixture(t, map[string]string{"coinflip_win_chance": "0.5"})
		f.store.seed(1, 1000)
		f.rng.floats = []float64{0.9}

		outcome, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 100})

		require.NoError(t, err)
		assert.Equal(t, models.GameResultLoss, outcome.Result)
		assert.Equal(t, int64(-100), outcome.Profit)
		assert.Equal(t, int64(900), f.store.balance(1))
		assert.Equal(t, int64(1), f.store.account(1).Losses)
	})

	t.Run("push refunds the stake", func(t *testing.T) {
		f := newSettlementFixture(t, nil)
		f.store.seed(1, 1000)
		f.rng.ints = []int{53}

		outcome, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameGuess, UserID: 1, Stake: 100, Choice: "50"})

		require.NoError(t, err)
		assert.Equal(t, models.GameResultPush, outcome.Result)
		assert.Equal(t, int64(1000), f.store.balance(1))
		assert.Equal(t, []models.TransactionType{models.TransactionTypeGameStake, models.TransactionTypeGamePush}, f.store.historyTypes(1))
	})

	t.Run("all-in flip turns a win into a loss", func(t *testing.T) {
		f := newSettlementFixture(t, map[string]string{
			"coinflip_win_chance": "1",
			"allin_flip_chance":   "0.9",
		})
		f.store.seed(1, 1000)
		f.rng.floats = []float64{0.1, 0.2}

		outcome, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 1000})

		require.NoError(t, err)
		assert.True(t, outcome.AllInFlipped)
		assert.Equal(t, models.GameResultLoss, outcome.Result)
		assert.Zero(t, f.store.balance(1))
	})

	t.Run("new accounts start with the configured balance", func(t *testing.T) {
		f := newSettlementFixture(t, map[string]string{"coinflip_win_chance": "0.5"})
		f.rng.floats = []float64{0.9}

		_, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 7, Stake: 100})

		require.NoError(t, err)
		assert.Equal(t, int64(2400), f.store.balance(7))
		assert.Equal(t, models.TransactionTypeInitial, f.store.historyTypes(7)[0])
	})
}

func TestSettlementService_PlayValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		req     models.PlayRequest
		wantErr error
	}{
		{"unknown game", models.PlayRequest{Game: "poker", UserID: 1, Stake: 100}, ErrValidation},
		{"zero stake", models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 0}, ErrValidation},
		{"below minimum bet", models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 5}, ErrValidation},
		{"more than the balance", models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 600}, ErrInsufficientFunds},
		{"bad roulette bet", models.PlayRequest{Game: models.GameRoulette, UserID: 1, Stake: 100, Choice: "purple"}, ErrValidation},
		{"crash target too low", models.PlayRequest{Game: models.GameCrash, UserID: 1, Stake: 100, Choice: "1.0"}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSettlementFixture(t, nil)
			f.store.seed(1, 500)

			_, err := f.service.Play(ctx, tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, int64(500), f.store.balance(1))
			assert.Empty(t, f.store.historyTypes(1))
			assert.Empty(t, f.store.events())
		})
	}

	t.Run("max bet may be exceeded by going all-in", func(t *testing.T) {
		f := newSettlementFixture(t, map[string]string{"max_bet": "100", "coinflip_win_chance": "0.5"})
		f.store.seed(1, 500)
		f.rng.floats = []float64{0.9}

		_, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 500})
		require.NoError(t, err)

		f.store.seed(2, 500)
		_, err = f.service.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 2, Stake: 400})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestSettlementService_OutcomeHooks(t *testing.T) {
	ctx := context.Background()

	t.Run("hooks see committed wins and losses", func(t *testing.T) {
		f := newSettlementFixture(t, map[string]string{"coinflip_win_chance": "1"})
		f.store.seed(1, 1000)
		f.rng.floats = []float64{0.3}

		hook := new(MockOutcomeHook)
		hook.On("OnOutcomeRecorded", mock.Anything, mock.MatchedBy(func(r models.OutcomeRecord) bool {
			return r.AccountID == 1 && r.Result == models.GameResultWin && r.Game == models.GameCoinflip
		})).Return(nil).Once()
		f.service.RegisterOutcomeHook(hook)

		_, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 100})

		require.NoError(t, err)
		hook.AssertExpectations(t)
	})

	t.Run("a failing hook does not undo the settlement", func(t *testing.T) {
		f := newSettlementFixture(t, map[string]string{"coinflip_win_chance": "1"})
		f.store.seed(1, 1000)
		f.rng.floats = []float64{0.3}

		hook := new(MockOutcomeHook)
		hook.On("OnOutcomeRecorded", mock.Anything, mock.Anything).Return(assert.AnError)
		f.service.RegisterOutcomeHook(hook)

		_, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 100})

		require.NoError(t, err)
		assert.Equal(t, int64(1095), f.store.balance(1))
	})

	t.Run("hooks outlive a cancelled request", func(t *testing.T) {
		f := newSettlementFixture(t, map[string]string{"coinflip_win_chance": "1"})
		f.store.seed(1, 1000)
		f.rng.floats = []float64{0.3}
		reqCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		first := new(MockOutcomeHook)
		first.On("OnOutcomeRecorded", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { cancel() }).
			Return(nil).Once()
		second := new(MockOutcomeHook)
		second.On("OnOutcomeRecorded", mock.MatchedBy(func(c context.Context) bool {
			return c.Err() == nil
		}), mock.Anything).Return(nil).Once()
		f.service.RegisterOutcomeHook(first)
		f.service.RegisterOutcomeHook(second)

		_, err := f.service.Play(reqCtx, models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 100})

		require.NoError(t, err)
		require.Error(t, reqCtx.Err())
		first.AssertExpectations(t)
		second.AssertExpectations(t)
	})

	t.Run("pushes do not reach the hooks", func(t *testing.T) {
		f := newSettlementFixture(t, nil)
		f.store.seed(1, 1000)
		f.rng.ints = []int{53}

		hook := new(MockOutcomeHook)
		f.service.RegisterOutcomeHook(hook)

		_, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameGuess, UserID: 1, Stake: 100, Choice: "50"})

		require.NoError(t, err)
		hook.AssertNotCalled(t, "OnOutcomeRecorded", mock.Anything, mock.Anything)
	})

	t.Run("game event is published after commit", func(t *testing.T) {
		f := newSettlementFixture(t, map[string]string{"coinflip_win_chance": "1"})
		f.store.seed(1, 1000)
		f.rng.floats = []float64{0.3}

		_, err := f.service.Play(ctx, models.PlayRequest{Game: models.GameCoinflip, UserID: 1, Stake: 100})
		require.NoError(t, err)

		var played []events.GamePlayedEvent
		for _, e := range f.store.events() {
			if gp, ok := e.(events.GamePlayedEvent); ok {
				played = append(played, gp)
			}
		}
		require.Len(t, played, 1)
		assert.Equal(t, int64(195), played[0].Payout)
	})
}
