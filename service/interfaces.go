package service

import (
	"context"
	"time"

	"kzcasino/events"
	"kzcasino/models"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// Ensure creates the account with the starting balance if it does not exist.
	// Reports whether a new row was inserted.
	Ensure(ctx context.Context, discordID int64, startBalance int64) (bool, error)

	// GetByDiscordID retrieves an account, or nil when it does not exist
	GetByDiscordID(ctx context.Context, discordID int64) (*models.Account, error)

	// GetForUpdate retrieves an account and locks its row until the transaction ends
	GetForUpdate(ctx context.Context, discordID int64) (*models.Account, error)

	// AddBalance applies delta clamped at zero in one statement and returns the change, or nil when the account does not exist
	AddBalance(ctx context.Context, discordID int64, delta int64) (*models.BalanceChange, error)

	// SetBalance overwrites the balance, clamping negative input to zero
	SetBalance(ctx context.Context, discordID int64, amount int64) (*models.BalanceChange, error)

	// IncrementStats adds to the solo game counters
	IncrementStats(ctx context.Context, discordID int64, delta models.StatsDelta) error

	// IncrementPvPStats adds to the duel counters
	IncrementPvPStats(ctx context.Context, discordID int64, delta models.PvPStatsDelta) error

	// IncrementBotStats adds to the house duel counters
	IncrementBotStats(ctx context.Context, discordID int64, wins, losses int64) error

	// AddXP adds progress points
	AddXP(ctx context.Context, discordID int64, amount int64) error

	// Wipe zeroes the balance and every counter of one account
	Wipe(ctx context.Context, discordID int64) error

	// WipeAll zeroes every account and returns how many were touched
	WipeAll(ctx context.Context) (int64, error)

	// GetTopByBalance returns the richest accounts
	GetTopByBalance(ctx context.Context, limit int) ([]*models.Account, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns balance history for a specific user, newest first
	GetByUser(ctx context.Context, discordID int64, limit int) ([]*models.BalanceHistory, error)

	// GetByDateRange returns balance history within a date range
	GetByDateRange(ctx context.Context, discordID int64, from, to time.Time) ([]*models.BalanceHistory, error)
}

// SettingRepository defines the interface for the key/value settings table
type SettingRepository interface {
	// Get returns the stored value, or nil when the key is absent
	Get(ctx context.Context, key string) (*string, error)

	// GetByPrefix returns every key/value whose key starts with prefix
	GetByPrefix(ctx context.Context, prefix string) (map[string]string, error)

	// Set upserts a value
	Set(ctx context.Context, key, value string) error

	// Delete removes a key and reports whether it existed
	Delete(ctx context.Context, key string) (bool, error)

	// DeleteByPrefix removes every key starting with prefix
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// GameStatRepository defines the interface for per-game statistics
type GameStatRepository interface {
	// Increment adds to the counters of one (account, game) row, creating it as needed
	Increment(ctx context.Context, discordID int64, game models.GameName, delta models.GameStatDelta) error

	// GetByUser returns every per-game row for an account
	GetByUser(ctx context.Context, discordID int64) ([]*models.GameStat, error)
}

// PredictionRepository defines the interface for prediction data access
type PredictionRepository interface {
	// Get returns the open prediction for a pair, or nil
	Get(ctx context.Context, predictorID, targetID int64) (*models.Prediction, error)

	// Upsert stores the prediction for the pair, replacing an existing one
	Upsert(ctx context.Context, prediction *models.Prediction) error

	// Delete removes the prediction for a pair and reports whether one existed
	Delete(ctx context.Context, predictorID, targetID int64) (bool, error)

	// GetByPredictor returns the open predictions placed by a user
	GetByPredictor(ctx context.Context, predictorID int64) ([]*models.Prediction, error)

	// GetPredictorIDsByTarget returns who holds open predictions on a user, without locking
	GetPredictorIDsByTarget(ctx context.Context, targetID int64) ([]int64, error)

	// GetByTarget returns the open predictions on a user in creation order
	GetByTarget(ctx context.Context, targetID int64) ([]*models.Prediction, error)

	// DeleteByTarget removes every open prediction on a user
	DeleteByTarget(ctx context.Context, targetID int64) (int64, error)

	// CreateLog appends a resolved prediction
	CreateLog(ctx context.Context, entry *models.PredictionLog) error

	// GetLogsByUser returns resolved predictions where the user was predictor or target
	GetLogsByUser(ctx context.Context, discordID int64, limit int) ([]*models.PredictionLog, error)
}

// LoanRepository defines the interface for loan data access
type LoanRepository interface {
	// Create inserts a loan and fills its ID and CreatedAt
	Create(ctx context.Context, loan *models.Loan) error

	// GetByID retrieves a loan, or nil
	GetByID(ctx context.Context, id int64) (*models.Loan, error)

	// GetByIDForUpdate retrieves and locks a loan, or nil
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Loan, error)

	// Update persists status, balances, slot and timestamps
	Update(ctx context.Context, loan *models.Loan) error

	// GetUsedSlots returns the slots occupied by a borrower's open loans
	GetUsedSlots(ctx context.Context, borrowerID int64) ([]int, error)

	// GetOpenByUser returns pending and active loans where the user is borrower or lender
	GetOpenByUser(ctx context.Context, discordID int64) ([]*models.Loan, error)

	// GetPendingByLender returns pending p2p loans awaiting the lender's decision
	GetPendingByLender(ctx context.Context, lenderID int64) ([]*models.Loan, error)

	// GetPendingBank returns every pending bank loan
	GetPendingBank(ctx context.Context) ([]*models.Loan, error)

	// GetHistoryByUser returns terminal loans where the user took part, newest first
	GetHistoryByUser(ctx context.Context, discordID int64, limit int) ([]*models.Loan, error)

	// GetOverdueUnnotified returns active loans due before now that were not flagged yet
	GetOverdueUnnotified(ctx context.Context, now time.Time) ([]*models.Loan, error)

	// MarkOverdueNotified stamps overdue_notified_at if still unset and reports whether it did
	MarkOverdueNotified(ctx context.Context, id int64, at time.Time) (bool, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork manages a database transaction and the repositories bound to it
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	AccountRepository() AccountRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	SettingRepository() SettingRepository
	GameStatRepository() GameStatRepository
	PredictionRepository() PredictionRepository
	LoanRepository() LoanRepository

	// EventBus returns the transactional event bus for this unit of work
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates new units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// RandomSource supplies the randomness behind every game and duel
type RandomSource interface {
	// Float64 returns a number in [0, 1)
	Float64() float64

	// IntN returns a number in [0, n)
	IntN(n int) int
}

// ParamReader resolves a snapshot of every tunable parameter
type ParamReader interface {
	Snapshot(ctx context.Context) (*Params, error)
}

// OutcomeHook is invoked after a recorded win or loss has been committed
type OutcomeHook interface {
	OnOutcomeRecorded(ctx context.Context, record models.OutcomeRecord) error
}

// ProgressKind labels what a progress credit was earned for
type ProgressKind string

const (
	ProgressKindGame ProgressKind = "game"
	ProgressKindPvP  ProgressKind = "pvp"
)

// ProgressHook credits experience. Fire-and-forget: failures are logged by the implementation.
type ProgressHook interface {
	CreditProgress(ctx context.Context, discordID int64, kind ProgressKind, amount int64)
}

// LedgerService defines the interface for balance operations
type LedgerService interface {
	// EnsureAccount creates the account if needed and returns it
	EnsureAccount(ctx context.Context, discordID int64, startBalance int64) (*models.Account, error)

	// GetAccount returns the account, creating it with the configured starting balance
	GetAccount(ctx context.Context, discordID int64) (*models.Account, error)

	// GetBalance returns the current balance
	GetBalance(ctx context.Context, discordID int64) (int64, error)

	// AddBalance applies delta clamped at zero and returns the new balance
	AddBalance(ctx context.Context, discordID int64, delta int64) (int64, error)

	// SetBalance overwrites the balance; negative input clamps to zero
	SetBalance(ctx context.Context, discordID int64, amount int64) (int64, error)

	// Transfer moves amount between accounts, burning the transfer tax
	Transfer(ctx context.Context, fromID, toID int64, amount int64) (*models.TransferResult, error)

	// WipeAccount zeroes the balance, all counters and the claim cooldowns
	WipeAccount(ctx context.Context, discordID int64) error

	// WipeAll zeroes every account
	WipeAll(ctx context.Context) (int64, error)

	// History returns the most recent balance changes
	History(ctx context.Context, discordID int64, limit int) ([]*models.BalanceHistory, error)

	// Leaderboard returns accounts ranked by balance
	Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}

// RewardService defines the interface for periodic claims
type RewardService interface {
	// Claim collects a reward once its cooldown has elapsed
	Claim(ctx context.Context, discordID int64, kind models.ClaimKind) (*models.ClaimResult, error)

	// Cooldowns reports when each reward can next be collected
	Cooldowns(ctx context.Context, discordID int64) ([]models.ClaimStatus, error)
}

// ParamsService defines the interface for tunable parameters
type ParamsService interface {
	ParamReader

	// Get returns the effective value of a parameter
	Get(ctx context.Context, name string) (models.ParamValue, error)

	// Set validates and stores a live override
	Set(ctx context.Context, name, raw string) (models.ParamValue, error)

	// Reset removes the override of one parameter
	Reset(ctx context.Context, name string) error

	// ResetAll removes every override
	ResetAll(ctx context.Context) error

	// List returns every parameter with its effective value
	List(ctx context.Context) ([]*models.ParamState, error)
}

// SettlementService defines the interface for solo games
type SettlementService interface {
	// Play validates the stake, plays the game and settles it atomically
	Play(ctx context.Context, req models.PlayRequest) (*models.GameOutcome, error)

	// GameStats returns per-game statistics for an account
	GameStats(ctx context.Context, discordID int64) ([]*models.GameStat, error)

	// RegisterOutcomeHook adds a hook run after every committed win or loss
	RegisterOutcomeHook(hook OutcomeHook)
}

// PredictionService defines the interface for side-bets on other players
type PredictionService interface {
	OutcomeHook

	// Place opens or replaces a prediction on a target's next outcome
	Place(ctx context.Context, predictorID, targetID int64, stake int64, choice models.PredictionChoice) (*models.Prediction, error)

	// Cancel removes an open prediction and refunds its stake
	Cancel(ctx context.Context, predictorID, targetID int64) (int64, error)

	// List returns the open predictions placed by a user
	List(ctx context.Context, predictorID int64) ([]*models.Prediction, error)

	// ListOnTarget returns the open predictions on a user
	ListOnTarget(ctx context.Context, targetID int64) ([]*models.Prediction, error)

	// Logs returns resolved predictions involving a user
	Logs(ctx context.Context, discordID int64, limit int) ([]*models.PredictionLog, error)

	// Resolve settles every open prediction on the target against a result
	Resolve(ctx context.Context, targetID int64, result models.GameResult) (*models.PredictionResolution, error)
}

// LoanService defines the interface for bank and peer-to-peer loans
type LoanService interface {
	// Request files a pending loan in the borrower's lowest free slot
	Request(ctx context.Context, req models.LoanRequest) (*models.Loan, error)

	// Decide accepts or refuses a pending loan
	Decide(ctx context.Context, loanID, deciderID int64, accept bool) (*models.Loan, error)

	// Cancel withdraws a pending loan
	Cancel(ctx context.Context, loanID, actorID int64) (*models.Loan, error)

	// Repay pays down an active loan; a nil amount pays the full remaining due
	Repay(ctx context.Context, loanID, payerID int64, amount *int64) (*models.RepaymentResult, error)

	// Get returns a loan by ID
	Get(ctx context.Context, loanID int64) (*models.Loan, error)

	// ListForUser returns the loans visible to a user in the given view
	ListForUser(ctx context.Context, discordID int64, view models.LoanListView) ([]*models.Loan, error)

	// FlagOverdue stamps and announces active loans past their due date
	FlagOverdue(ctx context.Context, now time.Time) ([]*models.Loan, error)
}

// DuelService defines the interface for two-party duels
type DuelService interface {
	// Challenge opens a session, or plays against the house immediately
	Challenge(ctx context.Context, req models.ChallengeRequest) (*models.DuelSession, error)

	// Accept escrows both stakes and starts the duel
	Accept(ctx context.Context, key string, actorID int64) (*models.DuelSession, error)

	// Decline discards a pending challenge
	Decline(ctx context.Context, key string, actorID int64) (*models.DuelSession, error)

	// SubmitMove records a move and resolves once both sides are done
	SubmitMove(ctx context.Context, key string, actorID int64, move models.DuelMove) (*models.DuelSession, error)

	// Expire times out a session
	Expire(ctx context.Context, key string) (*models.DuelSession, error)

	// SweepExpired expires every session past its deadline
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	// Get returns a snapshot of a live session
	Get(key string) (*models.DuelSession, error)

	// ListForUser returns the live sessions a user takes part in
	ListForUser(discordID int64) []*models.DuelSession
}
