package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"kzcasino/config"
	"kzcasino/events"
	"kzcasino/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type duelFixture struct {
	service  DuelService
	store    *memoryStore
	clock    *fixedClock
	rng      *scriptedRandom
	progress *MockProgressHook
}

func newDuelFixture(overrides map[string]string) *duelFixture {
	clock := newFixedClock()
	store := newMemoryStore(clock)
	rng := &scriptedRandom{}
	progress := new(MockProgressHook)
	progress.On("CreditProgress", mock.Anything, mock.Anything, ProgressKindPvP, mock.Anything).Maybe()

	svc := NewDuelService(store, newStaticParams(overrides), rng, clock, progress, config.NewTestConfig())
	return &duelFixture{service: svc, store: store, clock: clock, rng: rng, progress: progress}
}

// startDuel seeds both players and returns an accepted session
func (f *duelFixture) startDuel(t *testing.T, duelType models.DuelType, bet int64) *models.DuelSession {
	t.Helper()
	ctx := context.Background()
	f.store.seed(1, 500)
	f.store.seed(2, 500)

	session, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: duelType, ChallengerID: 1, OpponentID: 2, Bet: bet})
	require.NoError(t, err)
	require.Equal(t, models.DuelStatePending, session.State)

	session, err = f.service.Accept(ctx, session.Key, 2)
	require.NoError(t, err)
	require.Equal(t, models.DuelStateActive, session.State)
	return session
}

func TestDuelService_RockPaperScissors(t *testing.T) {
	ctx := context.Background()

	t.Run("winner takes the taxed pot", func(t *testing.T) {
		f := newDuelFixture(map[string]string{"rps_tax": "0.05"})
		session := f.startDuel(t, models.DuelTypeRPS, 200)

		assert.Equal(t, int64(300), f.store.balance(1))
		assert.Equal(t, int64(300), f.store.balance(2))

		session, err := f.service.SubmitMove(ctx, session.Key, 1, models.MoveRock)
		require.NoError(t, err)
		assert.Equal(t, models.DuelStateActive, session.State)

		session, err = f.service.SubmitMove(ctx, session.Key, 2, models.MoveScissors)
		require.NoError(t, err)

		require.Equal(t, models.DuelStateResolved, session.State)
		require.NotNil(t, session.Result.WinnerID)
		assert.Equal(t, int64(1), *session.Result.WinnerID)
		assert.Equal(t, int64(20), session.Result.Tax)
		assert.Equal(t, int64(380), session.Result.WinnerGain)
		assert.Equal(t, int64(680), f.store.balance(1))
		assert.Equal(t, int64(300), f.store.balance(2))

		winner, loser := f.store.account(1), f.store.account(2)
		assert.Equal(t, int64(1), winner.PvPWins)
		assert.Equal(t, int64(180), winner.PvPProfit)
		assert.Equal(t, int64(1), loser.PvPLosses)
		assert.Equal(t, int64(-200), loser.PvPProfit)

		f.progress.AssertCalled(t, "CreditProgress", mock.Anything, int64(1), ProgressKindPvP, int64(70))
		f.progress.AssertCalled(t, "CreditProgress", mock.Anything, int64(2), ProgressKindPvP, int64(50))
	})

	t.Run("a tie refunds both stakes", func(t *testing.T) {
		f := newDuelFixture(nil)
		session := f.startDuel(t, models.DuelTypeRPS, 200)

		_, err := f.service.SubmitMove(ctx, session.Key, 1, models.MovePaper)
		require.NoError(t, err)
		session, err = f.service.SubmitMove(ctx, session.Key, 2, models.MovePaper)
		require.NoError(t, err)

		assert.True(t, session.Result.Tie)
		assert.Equal(t, int64(500), f.store.balance(1))
		assert.Equal(t, int64(500), f.store.balance(2))
	})

	t.Run("resolving twice moves no funds", func(t *testing.T) {
		f := newDuelFixture(nil)
		session := f.startDuel(t, models.DuelTypeRPS, 200)

		_, err := f.service.SubmitMove(ctx, session.Key, 1, models.MoveRock)
		require.NoError(t, err)
		_, err = f.service.SubmitMove(ctx, session.Key, 2, models.MoveScissors)
		require.NoError(t, err)

		_, err = f.service.SubmitMove(ctx, session.Key, 2, models.MovePaper)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = f.service.Expire(ctx, session.Key)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.Equal(t, int64(700), f.store.balance(1))
		assert.Equal(t, int64(300), f.store.balance(2))
	})

	t.Run("moves are checked", func(t *testing.T) {
		f := newDuelFixture(nil)
		session := f.startDuel(t, models.DuelTypeRPS, 200)

		_, err := f.service.SubmitMove(ctx, session.Key, 1, models.MoveAttack)
		assert.ErrorIs(t, err, ErrValidation)
		_, err = f.service.SubmitMove(ctx, session.Key, 3, models.MoveRock)
		assert.ErrorIs(t, err, ErrUnauthorized)

		_, err = f.service.SubmitMove(ctx, session.Key, 1, models.MoveRock)
		require.NoError(t, err)
		_, err = f.service.SubmitMove(ctx, session.Key, 1, models.MovePaper)
		assert.ErrorIs(t, err, ErrWrongState)
	})
}

func TestDuelService_QuickAction(t *testing.T) {
	ctx := context.Background()
	f := newDuelFixture(nil)
	session := f.startDuel(t, models.DuelTypeQuickAction, 100)

	_, err := f.service.SubmitMove(ctx, session.Key, 1, models.MoveDefense)
	require.NoError(t, err)
	session, err = f.service.SubmitMove(ctx, session.Key, 2, models.MoveAttack)
	require.NoError(t, err)

	// attack beats defense
	require.NotNil(t, session.Result.WinnerID)
	assert.Equal(t, int64(2), *session.Result.WinnerID)
	assert.Equal(t, int64(400), f.store.balance(1))
	assert.Equal(t, int64(600), f.store.balance(2))
}

func TestDuelService_Blackjack(t *testing.T) {
	ctx := context.Background()
	f := newDuelFixture(nil)
	session := f.startDuel(t, models.DuelTypeBlackjack, 100)

	require.Len(t, session.ChallengerHand, 2)
	require.Len(t, session.OpponentHand, 2)

	session, err := f.service.SubmitMove(ctx, session.Key, 1, models.MoveStand)
	require.NoError(t, err)
	assert.True(t, session.ChallengerDone)

	_, err = f.service.SubmitMove(ctx, session.Key, 1, models.MoveHit)
	assert.ErrorIs(t, err, ErrWrongState)

	session, err = f.service.SubmitMove(ctx, session.Key, 2, models.MoveStand)
	require.NoError(t, err)
	require.Equal(t, models.DuelStateResolved, session.State)

	assert.Equal(t, models.HandValue(session.ChallengerHand), session.Result.ChallengerScore)
	assert.Equal(t, int64(1000), f.store.balance(1)+f.store.balance(2), "untaxed pot is conserved")
}

func TestDuelService_Handshake(t *testing.T) {
	ctx := context.Background()

	t.Run("challenger must afford the bet", func(t *testing.T) {
		f := newDuelFixture(nil)
		f.store.seed(1, 100)

		_, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, OpponentID: 2, Bet: 200})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("invalid challenges", func(t *testing.T) {
		f := newDuelFixture(nil)

		_, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: "chess", ChallengerID: 1, OpponentID: 2, Bet: 200})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, OpponentID: 2, Bet: 0})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, OpponentID: 1, Bet: 10})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("only the opponent accepts", func(t *testing.T) {
		f := newDuelFixture(nil)
		f.store.seed(1, 500)
		session, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, OpponentID: 2, Bet: 200})
		require.NoError(t, err)

		_, err = f.service.Accept(ctx, session.Key, 1)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, int64(500), f.store.balance(1))
	})

	t.Run("opponent short of funds discards the challenge", func(t *testing.T) {
		f := newDuelFixture(nil)
		f.store.seed(1, 500)
		f.store.seed(2, 50)
		session, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, OpponentID: 2, Bet: 200})
		require.NoError(t, err)

		_, err = f.service.Accept(ctx, session.Key, 2)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Equal(t, int64(500), f.store.balance(1))
		assert.Equal(t, int64(50), f.store.balance(2))

		_, err = f.service.Get(session.Key)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("decline removes the session without moving funds", func(t *testing.T) {
		f := newDuelFixture(nil)
		f.store.seed(1, 500)
		session, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, OpponentID: 2, Bet: 200})
		require.NoError(t, err)

		_, err = f.service.Decline(ctx, session.Key, 3)
		assert.ErrorIs(t, err, ErrUnauthorized)

		session, err = f.service.Decline(ctx, session.Key, 2)
		require.NoError(t, err)
		assert.Equal(t, models.DuelStateDeclined, session.State)
		assert.Empty(t, f.service.ListForUser(1))
		assert.Equal(t, int64(500), f.store.balance(1))
	})

	t.Run("accepted duels cannot be declined", func(t *testing.T) {
		f := newDuelFixture(nil)
		session := f.startDuel(t, models.DuelTypeRPS, 200)

		_, err := f.service.Decline(ctx, session.Key, 2)
		assert.ErrorIs(t, err, ErrWrongState)
		_, err = f.service.Accept(ctx, session.Key, 2)
		assert.ErrorIs(t, err, ErrWrongState)
	})

	t.Run("accepting after the deadline fails", func(t *testing.T) {
		f := newDuelFixture(nil)
		f.store.seed(1, 500)
		f.store.seed(2, 500)
		session, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, OpponentID: 2, Bet: 200})
		require.NoError(t, err)

		f.clock.Advance(61 * time.Second)
		_, err = f.service.Accept(ctx, session.Key, 2)
		assert.ErrorIs(t, err, ErrWrongState)
		assert.Equal(t, int64(500), f.store.balance(2))
	})
}

func TestDuelService_Timeouts(t *testing.T) {
	ctx := context.Background()

	t.Run("a pending challenge expires quietly", func(t *testing.T) {
		f := newDuelFixture(nil)
		f.store.seed(1, 500)
		session, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, OpponentID: 2, Bet: 200})
		require.NoError(t, err)

		session, err = f.service.Expire(ctx, session.Key)
		require.NoError(t, err)
		assert.Equal(t, models.DuelStateExpired, session.State)
		assert.Equal(t, int64(500), f.store.balance(1))
	})

	t.Run("the player who moved wins on timeout", func(t *testing.T) {
		f := newDuelFixture(nil)
		session := f.startDuel(t, models.DuelTypeRPS, 200)

		_, err := f.service.SubmitMove(ctx, session.Key, 2, models.MoveRock)
		require.NoError(t, err)

		session, err = f.service.Expire(ctx, session.Key)
		require.NoError(t, err)
		assert.True(t, session.Result.TimedOut)
		assert.Equal(t, int64(2), *session.Result.WinnerID)
		assert.Equal(t, int64(300), f.store.balance(1))
		assert.Equal(t, int64(700), f.store.balance(2))
	})

	t.Run("nobody moved refunds both", func(t *testing.T) {
		f := newDuelFixture(nil)
		session := f.startDuel(t, models.DuelTypeRPS, 200)

		session, err := f.service.Expire(ctx, session.Key)
		require.NoError(t, err)
		assert.True(t, session.Result.Tie)
		assert.Equal(t, int64(500), f.store.balance(1))
	})

	t.Run("sweep settles everything past its deadline", func(t *testing.T) {
		f := newDuelFixture(nil)
		active := f.startDuel(t, models.DuelTypeRPS, 100)
		f.store.seed(3, 500)
		_, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 3, OpponentID: 1, Bet: 100})
		require.NoError(t, err)

		n, err := f.service.SweepExpired(ctx, f.clock.Now())
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = f.service.SweepExpired(ctx, f.clock.Now().Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Empty(t, f.service.ListForUser(1))

		_, err = f.service.Get(active.Key)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, int64(500), f.store.balance(1))
	})
}

func TestDuelService_AgainstHouse(t *testing.T) {
	ctx := context.Background()
	house := config.NewTestConfig().HouseDiscordID

	t.Run("house win keeps the stake", func(t *testing.T) {
		f := newDuelFixture(map[string]string{"bot_win_chance": "1"})
		f.store.seed(1, 500)
		f.rng.floats = []float64{0.4}

		session, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, OpponentID: house, Bet: 200})

		require.NoError(t, err)
		assert.Equal(t, models.DuelStateResolved, session.State)
		assert.True(t, *session.Result.HouseWon)
		assert.Equal(t, int64(300), f.store.balance(1))
		assert.Equal(t, int64(1), f.store.account(1).BotLosses)
		assert.Empty(t, f.service.ListForUser(1))
	})

	t.Run("beating the house refunds the stake less the penalty", func(t *testing.T) {
		f := newDuelFixture(map[string]string{"bot_win_chance": "0", "bot_loss_penalty": "10"})
		f.store.seed(1, 500)
		f.rng.floats = []float64{0.4}

		session, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeBlackjack, ChallengerID: 1, Bet: 200, AgainstHouse: true})

		require.NoError(t, err)
		assert.False(t, *session.Result.HouseWon)
		assert.Equal(t, int64(20), session.Result.HouseKept)
		assert.Equal(t, int64(180), session.Result.Refund)
		assert.Equal(t, house, session.OpponentID)
		assert.Equal(t, int64(480), f.store.balance(1))
		assert.Equal(t, int64(1), f.store.account(1).BotWins)
	})

	t.Run("disabled house", func(t *testing.T) {
		f := newDuelFixture(map[string]string{"bot_enabled": "0"})
		f.store.seed(1, 500)

		_, err := f.service.Challenge(ctx, models.ChallengeRequest{Type: models.DuelTypeRPS, ChallengerID: 1, Bet: 200, AgainstHouse: true})
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, int64(500), f.store.balance(1))
	})
}

func TestDuelService_ConcurrentMoves(t *testing.T) {
	ctx := context.Background()
	f := newDuelFixture(nil)
	session := f.startDuel(t, models.DuelTypeRPS, 200)

	var wg sync.WaitGroup
	for _, p := range []struct {
		id   int64
		move models.DuelMove
	}{{1, models.MoveRock}, {2, models.MoveScissors}} {
		wg.Add(1)
		go func(id int64, move models.DuelMove) {
			defer wg.Done()
			_, _ = f.service.SubmitMove(ctx, session.Key, id, move)
		}(p.id, p.move)
	}
	wg.Wait()

	assert.Equal(t, int64(700), f.store.balance(1))
	assert.Equal(t, int64(300), f.store.balance(2))

	var resolved int
	for _, e := range f.store.events() {
		if _, ok := e.(events.DuelResolvedEvent); ok {
			resolved++
		}
	}
	assert.Equal(t, 1, resolved)
}
