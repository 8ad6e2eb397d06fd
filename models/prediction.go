package models

import (
	"fmt"
	"strings"
	"time"
)

// PredictionChoice is what the predictor expects the target to do next
type PredictionChoice string

const (
	PredictionChoiceWin  PredictionChoice = "win"
	PredictionChoiceLose PredictionChoice = "lose"
)

// ParsePredictionChoice validates a prediction choice
func ParsePredictionChoice(s string) (PredictionChoice, error) {
	switch PredictionChoice(strings.ToLower(strings.TrimSpace(s))) {
	case PredictionChoiceWin:
		return PredictionChoiceWin, nil
	case PredictionChoiceLose:
		return PredictionChoiceLose, nil
	}
	return "", fmt.Errorf("invalid prediction choice %q", s)
}

// Matches reports whether the recorded game result satisfies the choice.
// Pushes never match and never reach resolution.
func (c PredictionChoice) Matches(result GameResult) bool {
	switch c {
	case PredictionChoiceWin:
		return result == GameResultWin
	case PredictionChoiceLose:
		return result == GameResultLoss
	}
	return false
}

// Prediction is an open side-bet on another player's next outcome
type Prediction struct {
	PredictorID int64            `db:"predictor_id"`
	TargetID    int64            `db:"target_id"`
	Stake       int64            `db:"stake"`
	Choice      PredictionChoice `db:"choice"`
	CreatedAt   time.Time        `db:"created_at"`
}

// PredictionLog is the immutable record of a resolved prediction
type PredictionLog struct {
	ID             int64            `db:"id"`
	PredictorID    int64            `db:"predictor_id"`
	TargetID       int64            `db:"target_id"`
	Stake          int64            `db:"stake"`
	Choice         PredictionChoice `db:"choice"`
	Result         GameResult       `db:"result"`
	Correct        bool             `db:"correct"`
	PaidFromTarget int64            `db:"paid_from_target"`
	CreatedAt      time.Time        `db:"created_at"`
	ResolvedAt     time.Time        `db:"resolved_at"`
}

// PredictionResolution summarises one resolution pass over a target
type PredictionResolution struct {
	TargetID      int64
	Result        GameResult
	Logs          []*PredictionLog
	TargetBalance int64
}
