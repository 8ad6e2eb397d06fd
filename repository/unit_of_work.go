package repository

import (
	"context"
	"errors"
	"fmt"

	"kzcasino/database"
	"kzcasino/events"
	"kzcasino/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	accountRepo      service.AccountRepository
	historyRepo      service.BalanceHistoryRepository
	settingRepo      service.SettingRepository
	gameStatRepo     service.GameStatRepository
	predictionRepo   service.PredictionRepository
	loanRepo         service.LoanRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.accountRepo = newAccountRepositoryWithTx(tx)
	u.historyRepo = newBalanceHistoryRepositoryWithTx(tx)
	u.settingRepo = newSettingRepositoryWithTx(tx)
	u.gameStatRepo = newGameStatRepositoryWithTx(tx)
	u.predictionRepo = newPredictionRepositoryWithTx(tx)
	u.loanRepo = newLoanRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// BalanceHistoryRepository returns the balance history repository for this unit of work
func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	if u.historyRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.historyRepo
}

// SettingRepository returns the settings repository for this unit of work
func (u *unitOfWork) SettingRepository() service.SettingRepository {
	if u.settingRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.settingRepo
}

// GameStatRepository returns the per-game statistics repository for this unit of work
func (u *unitOfWork) GameStatRepository() service.GameStatRepository {
	if u.gameStatRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.gameStatRepo
}

// PredictionRepository returns the prediction repository for this unit of work
func (u *unitOfWork) PredictionRepository() service.PredictionRepository {
	if u.predictionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.predictionRepo
}

// LoanRepository returns the loan repository for this unit of work
func (u *unitOfWork) LoanRepository() service.LoanRepository {
	if u.loanRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.loanRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
