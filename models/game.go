package models

import (
	"fmt"
	"time"
)

// GameName identifies a solo mini-game
type GameName string

const (
	GameCoinflip  GameName = "coinflip"
	GameSlots     GameName = "slots"
	GameRoulette  GameName = "roulette"
	GameGuess     GameName = "guess"
	GameBlackjack GameName = "blackjack"
	GameCrash     GameName = "crash"
)

// AllGames lists every playable solo game
var AllGames = []GameName{GameCoinflip, GameSlots, GameRoulette, GameGuess, GameBlackjack, GameCrash}

// ParseGameName validates a game name
func ParseGameName(s string) (GameName, error) {
	for _, g := range AllGames {
		if string(g) == s {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown game %q", s)
}

// GameResult is the settled result of a play
type GameResult string

const (
	GameResultWin  GameResult = "win"
	GameResultLoss GameResult = "loss"
	GameResultPush GameResult = "push"
)

// PlayRequest is the input to a single solo game
type PlayRequest struct {
	Game   GameName
	UserID int64
	Stake  int64
	// Choice carries the game specific selection: a roulette bet ("red", "d2", "17"),
	// a guess ("1".."100") or a crash cash-out multiplier ("2.5"). Unused by coinflip and slots.
	Choice string
}

// GameOutcome is returned to the caller after settlement
type GameOutcome struct {
	Game          GameName   `json:"game"`
	UserID        int64      `json:"user_id"`
	Stake         int64      `json:"stake"`
	Result        GameResult `json:"result"`
	Multiplier    float64    `json:"multiplier"`
	Payout        int64      `json:"payout"` // amount credited back after the stake was debited
	Profit        int64      `json:"profit"` // net change against the pre-play balance
	BalanceBefore int64      `json:"balance_before"`
	BalanceAfter  int64      `json:"balance_after"`
	AllInFlipped  bool       `json:"all_in_flipped"`
	Detail        GameDetail `json:"detail"`
}

// GameDetail holds the visible artefacts of a play
type GameDetail struct {
	Reels       []string `json:"reels,omitempty"`
	Spin        *int     `json:"spin,omitempty"`
	SpinColor   string   `json:"spin_color,omitempty"`
	Target      *int     `json:"target,omitempty"`
	Guess       *int     `json:"guess,omitempty"`
	PlayerHand  []Card   `json:"player_hand,omitempty"`
	DealerHand  []Card   `json:"dealer_hand,omitempty"`
	CrashPoint  float64  `json:"crash_point,omitempty"`
	CashOutMult float64  `json:"cash_out_mult,omitempty"`
	CoinWon     *bool    `json:"coin_won,omitempty"`
}

// GameStat holds the per-game counters for an account
type GameStat struct {
	DiscordID int64     `db:"discord_id"`
	Game      GameName  `db:"game"`
	Games     int64     `db:"games"`
	Wins      int64     `db:"wins"`
	Losses    int64     `db:"losses"`
	Profit    int64     `db:"profit"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GameStatDelta is an increment applied to a GameStat row
type GameStatDelta struct {
	Games  int64
	Wins   int64
	Losses int64
	Profit int64
}

// OutcomeRecord is handed to post-commit outcome hooks once a win or loss is recorded
type OutcomeRecord struct {
	AccountID  int64
	Game       GameName
	Result     GameResult
	RecordedAt time.Time
}
