package models

import (
	"time"
)

// Account represents a user's wallet and play counters
type Account struct {
	DiscordID   int64     `db:"discord_id"`
	Balance     int64     `db:"balance"`
	GamesPlayed int64     `db:"games_played"`
	Wins        int64     `db:"wins"`
	Losses      int64     `db:"losses"`
	PvPGames    int64     `db:"pvp_games"`
	PvPWins     int64     `db:"pvp_wins"`
	PvPLosses   int64     `db:"pvp_losses"`
	PvPProfit   int64     `db:"pvp_profit"`
	BotWins     int64     `db:"bot_wins"`
	BotLosses   int64     `db:"bot_losses"`
	XP          int64     `db:"xp"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// StatsDelta is an increment applied to the solo game counters
type StatsDelta struct {
	Games  int64
	Wins   int64
	Losses int64
}

// PvPStatsDelta is an increment applied to the duel counters
type PvPStatsDelta struct {
	Games  int64
	Wins   int64
	Losses int64
	Profit int64
}

// IsZero reports whether the delta changes nothing
func (d StatsDelta) IsZero() bool {
	return d.Games == 0 && d.Wins == 0 && d.Losses == 0
}

// WinRate returns the share of solo games won, or 0 when none were played
func (a *Account) WinRate() float64 {
	if a.GamesPlayed == 0 {
		return 0
	}
	return float64(a.Wins) / float64(a.GamesPlayed)
}

// TransferResult describes a completed transfer between two accounts
type TransferResult struct {
	Amount           int64 `json:"amount"`   // debited from the sender
	Tax              int64 `json:"tax"`      // burned
	Received         int64 `json:"received"` // credited to the recipient
	SenderBalance    int64 `json:"sender_balance"`
	RecipientBalance int64 `json:"recipient_balance"`
}

// LeaderboardEntry is one row of the balance leaderboard
type LeaderboardEntry struct {
	Rank      int   `json:"rank"`
	DiscordID int64 `json:"discord_id"`
	Balance   int64 `json:"balance"`
	Wins      int64 `json:"wins"`
	Losses    int64 `json:"losses"`
}
