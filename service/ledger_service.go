package service

import (
	"context"
	"fmt"

	"kzcasino/config"
	"kzcasino/models"

	log "github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

type ledgerService struct {
	uowFactory UnitOfWorkFactory
	config     *config.Config
}

// NewLedgerService creates a new ledger service
func NewLedgerService(uowFactory UnitOfWorkFactory, cfg *config.Config) LedgerService {
	return &ledgerService{
		uowFactory: uowFactory,
		config:     cfg,
	}
}

// EnsureAccount creates the account if needed and returns it
func (s *ledgerService) EnsureAccount(ctx context.Context, discordID int64, startBalance int64) (*models.Account, error) {
	if startBalance < 0 {
		startBalance = 0
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := ensureAccount(ctx, uow, discordID, startBalance); err != nil {
		return nil, err
	}

	account, err := uow.AccountRepository().GetByDiscordID(ctx, discordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, notFound("account %d not found", discordID)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return account, nil
}

// GetAccount returns the account, creating it with the configured starting balance
func (s *ledgerService) GetAccount(ctx context.Context, discordID int64) (*models.Account, error) {
	return s.EnsureAccount(ctx, discordID, s.config.StartingBalance)
}

// GetBalance returns the current balance
func (s *ledgerService) GetBalance(ctx context.Context, discordID int64) (int64, error) {
	account, err := s.GetAccount(ctx, discordID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// AddBalance applies delta clamped at zero and returns the new balance
func (s *ledgerService) AddBalance(ctx context.Context, discordID int64, delta int64) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := ensureAccount(ctx, uow, discordID, s.config.StartingBalance); err != nil {
		return 0, err
	}

	change, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID: discordID,
		Delta:     delta,
		Type:      models.TransactionTypeAdminAdjust,
		Metadata:  map[string]any{"requested_delta": delta},
	})
	if err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"discordID": discordID,
		"requested": delta,
		"applied":   change.Applied(),
		"balance":   change.After,
	}).Debug("Balance adjusted")

	return change.After, nil
}

// SetBalance overwrites the balance; negative input clamps to zero
func (s *ledgerService) SetBalance(ctx context.Context, discordID int64, amount int64) (int64, error) {
	if amount < 0 {
		amount = 0
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := ensureAccount(ctx, uow, discordID, s.config.StartingBalance); err != nil {
		return 0, err
	}

	change, err := uow.AccountRepository().SetBalance(ctx, discordID, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to set balance: %w", err)
	}
	if change == nil {
		return 0, notFound("account %d not found", discordID)
	}

	if change.Applied() != 0 {
		if err := RecordBalanceChange(ctx, uow, &models.BalanceHistory{
			DiscordID:           discordID,
			BalanceBefore:       change.Before,
			BalanceAfter:        change.After,
			ChangeAmount:        change.Applied(),
			TransactionType:     models.TransactionTypeAdminAdjust,
			TransactionMetadata: map[string]any{"set_to": amount},
		}); err != nil {
			return 0, err
		}
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return change.After, nil
}

// transferTax is the whole part of TransferTaxPct percent of the amount
func transferTax(amount int64, pct float64) int64 {
	if pct <= 0 {
		return 0
	}
	return min(amount, int64(float64(amount)*pct/100))
}

// Transfer moves amount from one account to another. The tax is burned and the
// recipient is credited the rest; both rows are locked for the whole move.
func (s *ledgerService) Transfer(ctx context.Context, fromID, toID int64, amount int64) (*models.TransferResult, error) {
	if amount <= 0 {
		return nil, validationError("transfer amount must be positive")
	}
	if fromID == toID {
		return nil, validationError("you cannot transfer to yourself")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	accounts, err := lockAccounts(ctx, uow, s.config.StartingBalance, fromID, toID)
	if err != nil {
		return nil, err
	}
	sender := accounts[fromID]
	if sender.Balance < amount {
		return nil, insufficientFunds(sender.Balance, amount)
	}

	tax := transferTax(amount, s.config.TransferTaxPct)
	received := amount - tax

	out, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID: fromID,
		Delta:     -amount,
		Type:      models.TransactionTypeTransferOut,
		Metadata: map[string]any{
			"recipient_discord_id": toID,
			"transfer_amount":      amount,
			"tax":                  tax,
		},
	})
	if err != nil {
		return nil, err
	}
	in, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID: toID,
		Delta:     received,
		Type:      models.TransactionTypeTransferIn,
		Metadata: map[string]any{
			"sender_discord_id": fromID,
			"transfer_amount":   amount,
			"tax":               tax,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"fromID":   fromID,
		"toID":     toID,
		"amount":   amount,
		"tax":      tax,
		"received": received,
	}).Info("Transfer completed")

	return &models.TransferResult{
		Amount:           amount,
		Tax:              tax,
		Received:         received,
		SenderBalance:    out.After,
		RecipientBalance: in.After,
	}, nil
}

// WipeAccount zeroes the balance, all counters and the claim cooldowns
func (s *ledgerService) WipeAccount(ctx context.Context, discordID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetForUpdate(ctx, discordID)
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}
	if account == nil {
		return notFound("account %d not found", discordID)
	}

	if err := uow.AccountRepository().Wipe(ctx, discordID); err != nil {
		return fmt.Errorf("failed to wipe account: %w", err)
	}
	for _, kind := range models.ClaimKinds {
		if _, err := uow.SettingRepository().Delete(ctx, claimKey(kind, discordID)); err != nil {
			return fmt.Errorf("failed to reset %s claim: %w", kind, err)
		}
	}

	if account.Balance > 0 {
		if err := RecordBalanceChange(ctx, uow, &models.BalanceHistory{
			DiscordID:           discordID,
			BalanceBefore:       account.Balance,
			BalanceAfter:        0,
			ChangeAmount:        -account.Balance,
			TransactionType:     models.TransactionTypeAdminWipe,
			TransactionMetadata: map[string]any{},
		}); err != nil {
			return err
		}
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("discordID", discordID).Info("Account wiped")
	return nil
}

// WipeAll zeroes every account and clears every claim cooldown. No per-account history is written.
func (s *ledgerService) WipeAll(ctx context.Context) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	count, err := uow.AccountRepository().WipeAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to wipe accounts: %w", err)
	}
	if _, err := uow.SettingRepository().DeleteByPrefix(ctx, claimKeyPrefix); err != nil {
		return 0, fmt.Errorf("failed to reset claims: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithField("accounts", count).Info("All accounts wiped")
	return count, nil
}

// History returns the most recent balance changes
func (s *ledgerService) History(ctx context.Context, discordID int64, limit int) ([]*models.BalanceHistory, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	history, err := uow.BalanceHistoryRepository().GetByUser(ctx, discordID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get balance history: %w", err)
	}
	return history, nil
}

// Leaderboard returns accounts ranked by balance
func (s *ledgerService) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	accounts, err := uow.AccountRepository().GetTopByBalance(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	entries := make([]*models.LeaderboardEntry, len(accounts))
	for i, a := range accounts {
		entries[i] = &models.LeaderboardEntry{
			Rank:      i + 1,
			DiscordID: a.DiscordID,
			Balance:   a.Balance,
			Wins:      a.Wins,
			Losses:    a.Losses,
		}
	}
	return entries, nil
}
