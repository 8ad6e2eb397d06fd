package service

import (
	"context"
	"time"

	"kzcasino/events"
	"kzcasino/models"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Ensure(ctx context.Context, discordID int64, startBalance int64) (bool, error) {
	args := m.Called(ctx, discordID, startBalance)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) GetByDiscordID(ctx context.Context, discordID int64) (*models.Account, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetForUpdate(ctx context.Context, discordID int64) (*models.Account, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) AddBalance(ctx context.Context, discordID int64, delta int64) (*models.BalanceChange, error) {
	args := m.Called(ctx, discordID, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BalanceChange), args.Error(1)
}

func (m *MockAccountRepository) SetBalance(ctx context.Context, discordID int64, amount int64) (*models.BalanceChange, error) {
	args := m.Called(ctx, discordID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BalanceChange), args.Error(1)
}

func (m *MockAccountRepository) IncrementStats(ctx context.Context, discordID int64, delta models.StatsDelta) error {
	args := m.Called(ctx, discordID, delta)
	return args.Error(0)
}

func (m *MockAccountRepository) IncrementPvPStats(ctx context.Context, discordID int64, delta models.PvPStatsDelta) error {
	args := m.Called(ctx, discordID, delta)
	return args.Error(0)
}

func (m *MockAccountRepository) IncrementBotStats(ctx context.Context, discordID int64, wins, losses int64) error {
	args := m.Called(ctx, discordID, wins, losses)
	return args.Error(0)
}

func (m *MockAccountRepository) AddXP(ctx context.Context, discordID int64, amount int64) error {
	args := m.Called(ctx, discordID, amount)
	return args.Error(0)
}

func (m *MockAccountRepository) Wipe(ctx context.Context, discordID int64) error {
	args := m.Called(ctx, discordID)
	return args.Error(0)
}

func (m *MockAccountRepository) WipeAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) GetTopByBalance(ctx context.Context, limit int) ([]*models.Account, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, discordID int64, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, discordID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

func (m *MockBalanceHistoryRepository) GetByDateRange(ctx context.Context, discordID int64, from, to time.Time) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, discordID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockSettingRepository is a mock implementation of SettingRepository
type MockSettingRepository struct {
	mock.Mock
}

func (m *MockSettingRepository) Get(ctx context.Context, key string) (*string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

func (m *MockSettingRepository) GetByPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockSettingRepository) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockSettingRepository) Delete(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockSettingRepository) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).(int64), args.Error(1)
}

// MockGameStatRepository is a mock implementation of GameStatRepository
type MockGameStatRepository struct {
	mock.Mock
}

func (m *MockGameStatRepository) Increment(ctx context.Context, discordID int64, game models.GameName, delta models.GameStatDelta) error {
	args := m.Called(ctx, discordID, game, delta)
	return args.Error(0)
}

func (m *MockGameStatRepository) GetByUser(ctx context.Context, discordID int64) ([]*models.GameStat, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GameStat), args.Error(1)
}

// MockPredictionRepository is a mock implementation of PredictionRepository
type MockPredictionRepository struct {
	mock.Mock
}

func (m *MockPredictionRepository) Get(ctx context.Context, predictorID, targetID int64) (*models.Prediction, error) {
	args := m.Called(ctx, predictorID, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Prediction), args.Error(1)
}

func (m *MockPredictionRepository) Upsert(ctx context.Context, prediction *models.Prediction) error {
	args := m.Called(ctx, prediction)
	return args.Error(0)
}

func (m *MockPredictionRepository) Delete(ctx context.Context, predictorID, targetID int64) (bool, error) {
	args := m.Called(ctx, predictorID, targetID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPredictionRepository) GetByPredictor(ctx context.Context, predictorID int64) ([]*models.Prediction, error) {
	args := m.Called(ctx, predictorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Prediction), args.Error(1)
}

func (m *MockPredictionRepository) GetPredictorIDsByTarget(ctx context.Context, targetID int64) ([]int64, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockPredictionRepository) GetByTarget(ctx context.Context, targetID int64) ([]*models.Prediction, error) {
	args := m.Called(ctx, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Prediction), args.Error(1)
}

func (m *MockPredictionRepository) DeleteByTarget(ctx context.Context, targetID int64) (int64, error) {
	args := m.Called(ctx, targetID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPredictionRepository) CreateLog(ctx context.Context, entry *models.PredictionLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockPredictionRepository) GetLogsByUser(ctx context.Context, discordID int64, limit int) ([]*models.PredictionLog, error) {
	args := m.Called(ctx, discordID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PredictionLog), args.Error(1)
}

// MockLoanRepository is a mock implementation of LoanRepository
type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetByID(ctx context.Context, id int64) (*models.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) Update(ctx context.Context, loan *models.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

func (m *MockLoanRepository) GetUsedSlots(ctx context.Context, borrowerID int64) ([]int, error) {
	args := m.Called(ctx, borrowerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockLoanRepository) GetOpenByUser(ctx context.Context, discordID int64) ([]*models.Loan, error) {
	args := m.Called(ctx, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetPendingByLender(ctx context.Context, lenderID int64) ([]*models.Loan, error) {
	args := m.Called(ctx, lenderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetPendingBank(ctx context.Context) ([]*models.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetHistoryByUser(ctx context.Context, discordID int64, limit int) ([]*models.Loan, error) {
	args := m.Called(ctx, discordID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetOverdueUnnotified(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}

func (m *MockLoanRepository) MarkOverdueNotified(ctx context.Context, id int64, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repositories are wired with the setters.
type MockUnitOfWork struct {
	mock.Mock

	accountRepo    AccountRepository
	historyRepo    BalanceHistoryRepository
	settingRepo    SettingRepository
	gameStatRepo   GameStatRepository
	predictionRepo PredictionRepository
	loanRepo       LoanRepository
	eventPublisher EventPublisher
}

// SetRepositories wires the account, history and setting repositories
func (m *MockUnitOfWork) SetRepositories(accounts AccountRepository, history BalanceHistoryRepository, settings SettingRepository) {
	m.accountRepo = accounts
	m.historyRepo = history
	m.settingRepo = settings
}

func (m *MockUnitOfWork) SetGameStatRepository(repo GameStatRepository) {
	m.gameStatRepo = repo
}

func (m *MockUnitOfWork) SetPredictionRepository(repo PredictionRepository) {
	m.predictionRepo = repo
}

func (m *MockUnitOfWork) SetLoanRepository(repo LoanRepository) {
	m.loanRepo = repo
}

func (m *MockUnitOfWork) SetEventBus(publisher EventPublisher) {
	m.eventPublisher = publisher
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository {
	return m.accountRepo
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.historyRepo
}

func (m *MockUnitOfWork) SettingRepository() SettingRepository {
	return m.settingRepo
}

func (m *MockUnitOfWork) GameStatRepository() GameStatRepository {
	return m.gameStatRepo
}

func (m *MockUnitOfWork) PredictionRepository() PredictionRepository {
	return m.predictionRepo
}

func (m *MockUnitOfWork) LoanRepository() LoanRepository {
	return m.loanRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventPublisher
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockProgressHook is a mock implementation of ProgressHook
type MockProgressHook struct {
	mock.Mock
}

func (m *MockProgressHook) CreditProgress(ctx context.Context, discordID int64, kind ProgressKind, amount int64) {
	m.Called(ctx, discordID, kind, amount)
}

// MockOutcomeHook is a mock implementation of OutcomeHook
type MockOutcomeHook struct {
	mock.Mock
}

func (m *MockOutcomeHook) OnOutcomeRecorded(ctx context.Context, record models.OutcomeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
