package service

import (
	"context"
	"fmt"
	"sort"

	"kzcasino/events"
	"kzcasino/models"
)

// RecordBalanceChange records a balance history entry and emits appropriate events.
// Every balance change in the system goes through here.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	// Emit balance change event (will be flushed after transaction commits)
	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          history.DiscordID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	if history.TransactionType == models.TransactionTypeInitial {
		uow.EventBus().Publish(events.AccountCreatedEvent{
			DiscordID:      history.DiscordID,
			InitialBalance: history.BalanceAfter,
		})
	}

	return nil
}

// ledgerEntry describes one balance mutation applied inside a unit of work
type ledgerEntry struct {
	DiscordID   int64
	Delta       int64
	Type        models.TransactionType
	RelatedID   *int64
	RelatedType models.RelatedType
	Metadata    map[string]any
}

// applyLedgerEntry adds the delta clamped at zero and records the change that was applied.
// A change clamped to nothing leaves no history row.
func applyLedgerEntry(ctx context.Context, uow UnitOfWork, entry ledgerEntry) (*models.BalanceChange, error) {
	change, err := uow.AccountRepository().AddBalance(ctx, entry.DiscordID, entry.Delta)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	if change == nil {
		return nil, notFound("account %d not found", entry.DiscordID)
	}
	if change.Applied() == 0 {
		return change, nil
	}

	history := &models.BalanceHistory{
		DiscordID:           entry.DiscordID,
		BalanceBefore:       change.Before,
		BalanceAfter:        change.After,
		ChangeAmount:        change.Applied(),
		TransactionType:     entry.Type,
		TransactionMetadata: entry.Metadata,
		RelatedID:           entry.RelatedID,
	}
	if entry.RelatedType != "" {
		relatedType := entry.RelatedType
		history.RelatedType = &relatedType
	}
	if history.TransactionMetadata == nil {
		history.TransactionMetadata = map[string]any{}
	}

	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, err
	}
	return change, nil
}

// ensureAccount lazily creates an account and records its opening balance
func ensureAccount(ctx context.Context, uow UnitOfWork, discordID int64, startBalance int64) error {
	created, err := uow.AccountRepository().Ensure(ctx, discordID, startBalance)
	if err != nil {
		return fmt.Errorf("failed to ensure account: %w", err)
	}
	if !created {
		return nil
	}

	return RecordBalanceChange(ctx, uow, &models.BalanceHistory{
		DiscordID:           discordID,
		BalanceBefore:       0,
		BalanceAfter:        startBalance,
		ChangeAmount:        startBalance,
		TransactionType:     models.TransactionTypeInitial,
		TransactionMetadata: map[string]any{},
	})
}

// lockAccount ensures the account exists and holds its row lock until the unit of work ends
func lockAccount(ctx context.Context, uow UnitOfWork, discordID int64, startBalance int64) (*models.Account, error) {
	if err := ensureAccount(ctx, uow, discordID, startBalance); err != nil {
		return nil, err
	}

	account, err := uow.AccountRepository().GetForUpdate(ctx, discordID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	if account == nil {
		return nil, notFound("account %d not found", discordID)
	}
	return account, nil
}

// lockAccounts locks several accounts in ascending ID order so concurrent
// transfers between the same pair cannot deadlock
func lockAccounts(ctx context.Context, uow UnitOfWork, startBalance int64, discordIDs ...int64) (map[int64]*models.Account, error) {
	ids := append([]int64(nil), discordIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	accounts := make(map[int64]*models.Account, len(ids))
	for _, id := range ids {
		if _, done := accounts[id]; done {
			continue
		}
		account, err := lockAccount(ctx, uow, id, startBalance)
		if err != nil {
			return nil, err
		}
		accounts[id] = account
	}
	return accounts, nil
}

// lockExistingAccounts locks the given accounts in ascending id order without creating
// missing ones. Missing accounts map to nil.
func lockExistingAccounts(ctx context.Context, uow UnitOfWork, discordIDs []int64) (map[int64]*models.Account, error) {
	ids := append([]int64(nil), discordIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	accounts := make(map[int64]*models.Account, len(ids))
	for _, id := range ids {
		if _, done := accounts[id]; done {
			continue
		}
		account, err := uow.AccountRepository().GetForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to lock account %d: %w", id, err)
		}
		accounts[id] = account
	}
	return accounts, nil
}
