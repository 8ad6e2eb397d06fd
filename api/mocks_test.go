package api

import (
	"context"
	"time"

	"kzcasino/models"
	"kzcasino/service"

	"github.com/stretchr/testify/mock"
)

type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) EnsureAccount(ctx context.Context, discordID int64, startBalance int64) (*models.Account, error) {
	args := m.Called(ctx, discordID, startBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockLedgerService) GetAccount(ctx context.Context, discordID int64) (*models.Account, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockLedgerService) GetBalance(ctx context.Context, discordID int64) (int64, error) {
	args := m.Called(ctx, discordID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerService) AddBalance(ctx context.Context, discordID int64, delta int64) (int64, error) {
	args := m.Called(ctx, discordID, delta)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerService) SetBalance(ctx context.Context, discordID int64, amount int64) (int64, error) {
	args := m.Called(ctx, discordID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerService) Transfer(ctx context.Context, fromID, toID int64, amount int64) (*models.TransferResult, error) {
	args := m.Called(ctx, fromID, toID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransferResult), args.Error(1)
}

func (m *MockLedgerService) WipeAccount(ctx context.Context, discordID int64) error {
	args := m.Called(ctx, discordID)
	return args.Error(0)
}

func (m *MockLedgerService) WipeAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerService) History(ctx context.Context, discordID int64, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, discordID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

func (m *MockLedgerService) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LeaderboardEntry), args.Error(1)
}

type MockRewardService struct {
	mock.Mock
}

func (m *MockRewardService) Claim(ctx context.Context, discordID int64, kind models.ClaimKind) (*models.ClaimResult, error) {
	args := m.Called(ctx, discordID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ClaimResult), args.Error(1)
}

func (m *MockRewardService) Cooldowns(ctx context.Context, discordID int64) ([]models.ClaimStatus, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ClaimStatus), args.Error(1)
}

type MockParamsService struct {
	mock.Mock
}

func (m *MockParamsService) Snapshot(ctx context.Context) (*service.Params, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Params), args.Error(1)
}

func (m *MockParamsService) Get(ctx context.Context, name string) (models.ParamValue, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(models.ParamValue), args.Error(1)
}

func (m *MockParamsService) Set(ctx context.Context, name, raw string) (models.ParamValue, error) {
	args := m.Called(ctx, name, raw)
	return args.Get(0).(models.ParamValue), args.Error(1)
}

func (m *MockParamsService) Reset(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockParamsService) ResetAll(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockParamsService) List(ctx context.Context) ([]*models.ParamState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ParamState), args.Error(1)
}

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) Request(ctx context.Context, req models.LoanRequest) (*models.Loan, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) Decide(ctx context.Context, loanID, deciderID int64, accept bool) (*models.Loan, error) {
	args := m.Called(ctx, loanID, deciderID, accept)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) Cancel(ctx context.Context, loanID, actorID int64) (*models.Loan, error) {
	args := m.Called(ctx, loanID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) Repay(ctx context.Context, loanID, payerID int64, amount *int64) (*models.RepaymentResult, error) {
	args := m.Called(ctx, loanID, payerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RepaymentResult), args.Error(1)
}

func (m *MockLoanService) Get(ctx context.Context, loanID int64) (*models.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanService) ListForUser(ctx context.Context, discordID int64, view models.LoanListView) ([]*models.Loan, error) {
	args := m.Called(ctx, discordID, view)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanService) FlagOverdue(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

type MockPredictionService struct {
	mock.Mock
}

func (m *MockPredictionService) OnOutcomeRecorded(ctx context.Context, record models.OutcomeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockPredictionService) Place(ctx context.Context, predictorID, targetID int64, stake int64, choice models.PredictionChoice) (*models.Prediction, error) {
	args := m.Called(ctx, predictorID, targetID, stake, choice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *MockPredictionService) Cancel(ctx context.Context, predictorID, targetID int64) (int64, error) {
	args := m.Called(ctx, predictorID, targetID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPredictionService) List(ctx context.Context, predictorID int64) ([]*models.Prediction, error) {
	args := m.Called(ctx, predictorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Prediction), args.Error(1)
}

func (m *MockPredictionService) ListOnTarget(ctx context.Context, targetID int64) ([]*models.Prediction, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Prediction), args.Error(1)
}

func (m *MockPredictionService) Logs(ctx context.Context, discordID int64, limit int) ([]*models.PredictionLog, error) {
	args := m.Called(ctx, discordID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PredictionLog), args.Error(1)
}

func (m *MockPredictionService) Resolve(ctx context.Context, targetID int64, result models.GameResult) (*models.PredictionResolution, error) {
	args := m.Called(ctx, targetID, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PredictionResolution), args.Error(1)
}

type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
