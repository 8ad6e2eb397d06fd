package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type progressService struct {
	uowFactory UnitOfWorkFactory
}

// NewProgressService creates the experience tracker credited after games and duels
func NewProgressService(uowFactory UnitOfWorkFactory) ProgressHook {
	return &progressService{uowFactory: uowFactory}
}

// CreditProgress adds experience in its own transaction. Errors are logged and swallowed.
func (s *progressService) CreditProgress(ctx context.Context, discordID int64, kind ProgressKind, amount int64) {
	if amount <= 0 {
		return
	}
	if err := s.credit(ctx, discordID, amount); err != nil {
		log.WithFields(log.Fields{
			"discordID": discordID,
			"kind":      kind,
			"amount":    amount,
			"error":     err,
		}).Warn("Failed to credit progress")
		return
	}
	log.WithFields(log.Fields{
		"discordID": discordID,
		"kind":      kind,
		"amount":    amount,
	}).Debug("Progress credited")
}

func (s *progressService) credit(ctx context.Context, discordID int64, amount int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.AccountRepository().AddXP(ctx, discordID, amount); err != nil {
		return fmt.Errorf("failed to add xp: %w", err)
	}
	return uow.Commit()
}
