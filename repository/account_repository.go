package repository

import (
	"context"
	"errors"
	"fmt"

	"kzcasino/database"
	"kzcasino/models"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `discord_id, balance, games_played, wins, losses, pvp_games, pvp_wins, pvp_losses,
	pvp_profit, bot_wins, bot_losses, xp, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.DiscordID,
		&a.Balance,
		&a.GamesPlayed,
		&a.Wins,
		&a.Losses,
		&a.PvPGames,
		&a.PvPWins,
		&a.PvPLosses,
		&a.PvPProfit,
		&a.BotWins,
		&a.BotLosses,
		&a.XP,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Ensure creates the account with the starting balance if it does not exist
func (r *AccountRepository) Ensure(ctx context.Context, discordID int64, startBalance int64) (bool, error) {
	if startBalance < 0 {
		startBalance = 0
	}
	tag, err := r.q.Exec(ctx, `
		INSERT INTO accounts (discord_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (discord_id) DO NOTHING
	`, discordID, startBalance)
	if err != nil {
		return false, fmt.Errorf("failed to ensure account %d: %w", discordID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByDiscordID retrieves an account by its Discord ID
func (r *AccountRepository) GetByDiscordID(ctx context.Context, discordID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE discord_id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, discordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", discordID, err)
	}
	return account, nil
}

// GetForUpdate retrieves an account and locks the row for the rest of the transaction
func (r *AccountRepository) GetForUpdate(ctx context.Context, discordID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE discord_id = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRow(ctx, query, discordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %d: %w", discordID, err)
	}
	return account, nil
}

// AddBalance applies delta with a floor of zero and returns the before/after pair
func (r *AccountRepository) AddBalance(ctx context.Context, discordID int64, delta int64) (*models.BalanceChange, error) {
	query := `
		WITH prev AS (
			SELECT discord_id, balance FROM accounts WHERE discord_id = $1 FOR UPDATE
		)
		UPDATE accounts a
		SET balance = GREATEST(0, prev.balance + $2), updated_at = NOW()
		FROM prev
		WHERE a.discord_id = prev.discord_id
		RETURNING prev.balance, a.balance
	`

	change := models.BalanceChange{DiscordID: discordID}
	err := r.q.QueryRow(ctx, query, discordID, delta).Scan(&change.Before, &change.After)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add %d to balance of %d: %w", delta, discordID, err)
	}
	return &change, nil
}

// SetBalance overwrites the balance, clamping negative input to zero
func (r *AccountRepository) SetBalance(ctx context.Context, discordID int64, amount int64) (*models.BalanceChange, error) {
	query := `
		WITH prev AS (
			SELECT discord_id, balance FROM accounts WHERE discord_id = $1 FOR UPDATE
		)
		UPDATE accounts a
		SET balance = GREATEST(0, $2::BIGINT), updated_at = NOW()
		FROM prev
		WHERE a.discord_id = prev.discord_id
		RETURNING prev.balance, a.balance
	`

	change := models.BalanceChange{DiscordID: discordID}
	err := r.q.QueryRow(ctx, query, discordID, amount).Scan(&change.Before, &change.After)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set balance of %d: %w", discordID, err)
	}
	return &change, nil
}

// IncrementStats adds to the solo game counters
func (r *AccountRepository) IncrementStats(ctx context.Context, discordID int64, delta models.StatsDelta) error {
	_, err := r.q.Exec(ctx, `
		UPDATE accounts
		SET games_played = games_played + $2, wins = wins + $3, losses = losses + $4, updated_at = NOW()
		WHERE discord_id = $1
	`, discordID, delta.Games, delta.Wins, delta.Losses)
	if err != nil {
		return fmt.Errorf("failed to increment stats of %d: %w", discordID, err)
	}
	return nil
}

// IncrementPvPStats adds to the duel counters
func (r *AccountRepository) IncrementPvPStats(ctx context.Context, discordID int64, delta models.PvPStatsDelta) error {
	_, err := r.q.Exec(ctx, `
		UPDATE accounts
		SET pvp_games = pvp_games + $2, pvp_wins = pvp_wins + $3, pvp_losses = pvp_losses + $4,
		    pvp_profit = pvp_profit + $5, updated_at = NOW()
		WHERE discord_id = $1
	`, discordID, delta.Games, delta.Wins, delta.Losses, delta.Profit)
	if err != nil {
		return fmt.Errorf("failed to increment pvp stats of %d: %w", discordID, err)
	}
	return nil
}

// IncrementBotStats adds to the house duel counters
func (r *AccountRepository) IncrementBotStats(ctx context.Context, discordID int64, wins, losses int64) error {
	_, err := r.q.Exec(ctx, `
		UPDATE accounts
		SET bot_wins = bot_wins + $2, bot_losses = bot_losses + $3, updated_at = NOW()
		WHERE discord_id = $1
	`, discordID, wins, losses)
	if err != nil {
		return fmt.Errorf("failed to increment bot stats of %d: %w", discordID, err)
	}
	return nil
}

// AddXP adds progress points
func (r *AccountRepository) AddXP(ctx context.Context, discordID int64, amount int64) error {
	_, err := r.q.Exec(ctx, `
		UPDATE accounts SET xp = GREATEST(0, xp + $2), updated_at = NOW() WHERE discord_id = $1
	`, discordID, amount)
	if err != nil {
		return fmt.Errorf("failed to add xp to %d: %w", discordID, err)
	}
	return nil
}

const wipeAssignments = `balance = 0, games_played = 0, wins = 0, losses = 0, pvp_games = 0, pvp_wins = 0,
	pvp_losses = 0, pvp_profit = 0, bot_wins = 0, bot_losses = 0, xp = 0, updated_at = NOW()`

// Wipe zeroes the balance and every counter of one account
func (r *AccountRepository) Wipe(ctx context.Context, discordID int64) error {
	_, err := r.q.Exec(ctx, `UPDATE accounts SET `+wipeAssignments+` WHERE discord_id = $1`, discordID)
	if err != nil {
		return fmt.Errorf("failed to wipe account %d: %w", discordID, err)
	}
	return nil
}

// WipeAll zeroes every account
func (r *AccountRepository) WipeAll(ctx context.Context) (int64, error) {
	tag, err := r.q.Exec(ctx, `UPDATE accounts SET `+wipeAssignments)
	if err != nil {
		return 0, fmt.Errorf("failed to wipe accounts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetTopByBalance returns the richest accounts
func (r *AccountRepository) GetTopByBalance(ctx context.Context, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY balance DESC, discord_id ASC LIMIT $1`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}
