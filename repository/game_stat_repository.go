package repository

import (
	"context"
	"fmt"

	"kzcasino/database"
	"kzcasino/models"
)

// GameStatRepository implements the GameStatRepository interface
type GameStatRepository struct {
	q queryable
}

// NewGameStatRepository creates a new per-game statistics repository
func NewGameStatRepository(db *database.DB) *GameStatRepository {
	return &GameStatRepository{q: db.Pool}
}

func newGameStatRepositoryWithTx(tx queryable) *GameStatRepository {
	return &GameStatRepository{q: tx}
}

// Increment adds to the counters of one (account, game) row
func (r *GameStatRepository) Increment(ctx context.Context, discordID int64, game models.GameName, delta models.GameStatDelta) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO game_stats (discord_id, game, games, wins, losses, profit)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (discord_id, game) DO UPDATE SET
			games = game_stats.games + EXCLUDED.games,
			wins = game_stats.wins + EXCLUDED.wins,
			losses = game_stats.losses + EXCLUDED.losses,
			profit = game_stats.profit + EXCLUDED.profit,
			updated_at = NOW()
	`, discordID, game, delta.Games, delta.Wins, delta.Losses, delta.Profit)
	if err != nil {
		return fmt.Errorf("failed to increment %s stats of %d: %w", game, discordID, err)
	}
	return nil
}

// GetByUser returns every per-game row for an account
func (r *GameStatRepository) GetByUser(ctx context.Context, discordID int64) ([]*models.GameStat, error) {
	rows, err := r.q.Query(ctx, `
		SELECT discord_id, game, games, wins, losses, profit, updated_at
		FROM game_stats
		WHERE discord_id = $1
		ORDER BY game
	`, discordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game stats of %d: %w", discordID, err)
	}
	defer rows.Close()

	var stats []*models.GameStat
	for rows.Next() {
		var s models.GameStat
		if err := rows.Scan(&s.DiscordID, &s.Game, &s.Games, &s.Wins, &s.Losses, &s.Profit, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game stat: %w", err)
		}
		stats = append(stats, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate game stats: %w", err)
	}

	return stats, nil
}
