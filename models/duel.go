package models

import (
	"fmt"
	"strings"
	"time"
)

// DuelType identifies the two-party game being played
type DuelType string

const (
	DuelTypeRPS         DuelType = "rps"
	DuelTypeQuickAction DuelType = "quick_action"
	DuelTypeBlackjack   DuelType = "blackjack"
)

// ParseDuelType validates a duel type
func ParseDuelType(s string) (DuelType, error) {
	switch DuelType(strings.ToLower(strings.TrimSpace(s))) {
	case DuelTypeRPS:
		return DuelTypeRPS, nil
	case DuelTypeQuickAction:
		return DuelTypeQuickAction, nil
	case DuelTypeBlackjack:
		return DuelTypeBlackjack, nil
	}
	return "", fmt.Errorf("unknown duel type %q", s)
}

// DuelMove is a submitted action: a throw for rps/quick action or hit/stand for blackjack
type DuelMove string

const (
	MoveRock     DuelMove = "rock"
	MovePaper    DuelMove = "paper"
	MoveScissors DuelMove = "scissors"
	MoveAttack   DuelMove = "attack"
	MoveDefense  DuelMove = "defense"
	MoveAllIn    DuelMove = "allin"
	MoveHit      DuelMove = "hit"
	MoveStand    DuelMove = "stand"
)

// Allows reports whether the move belongs to the duel type
func (t DuelType) Allows(m DuelMove) bool {
	switch t {
	case DuelTypeRPS:
		return m == MoveRock || m == MovePaper || m == MoveScissors
	case DuelTypeQuickAction:
		return m == MoveAttack || m == MoveDefense || m == MoveAllIn
	case DuelTypeBlackjack:
		return m == MoveHit || m == MoveStand
	}
	return false
}

// DuelState represents the lifecycle state of a duel session
type DuelState string

const (
	DuelStatePending  DuelState = "pending"
	DuelStateActive   DuelState = "active"
	DuelStateResolved DuelState = "resolved"
	DuelStateDeclined DuelState = "declined"
	DuelStateExpired  DuelState = "expired"
)

// IsTerminal reports whether the session can no longer change
func (s DuelState) IsTerminal() bool {
	return s == DuelStateResolved || s == DuelStateDeclined || s == DuelStateExpired
}

// ChallengeRequest is the input to a new duel
type ChallengeRequest struct {
	Type         DuelType
	ChallengerID int64
	OpponentID   int64
	Bet          int64
	AgainstHouse bool
}

// DuelSession is a snapshot of an in-memory duel
type DuelSession struct {
	Key            string      `json:"key"`
	Type           DuelType    `json:"type"`
	ChallengerID   int64       `json:"challenger_id"`
	OpponentID     int64       `json:"opponent_id"`
	Bet            int64       `json:"bet"`
	AgainstHouse   bool        `json:"against_house"`
	State          DuelState   `json:"state"`
	Escrowed       bool        `json:"escrowed"`
	ChallengerMove *DuelMove   `json:"challenger_move,omitempty"`
	OpponentMove   *DuelMove   `json:"opponent_move,omitempty"`
	ChallengerHand []Card      `json:"challenger_hand,omitempty"`
	OpponentHand   []Card      `json:"opponent_hand,omitempty"`
	ChallengerDone bool        `json:"challenger_done"`
	OpponentDone   bool        `json:"opponent_done"`
	Seed           int64       `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	Deadline       time.Time   `json:"deadline"`
	AcceptedAt     *time.Time  `json:"accepted_at,omitempty"`
	Result         *DuelResult `json:"result,omitempty"`
}

// DuelResult is the settlement of a finished duel
type DuelResult struct {
	Tie             bool   `json:"tie"`
	WinnerID        *int64 `json:"winner_id,omitempty"`
	LoserID         *int64 `json:"loser_id,omitempty"`
	Pot             int64  `json:"pot"`
	Tax             int64  `json:"tax"`
	WinnerGain      int64  `json:"winner_gain"`
	ChallengerScore int    `json:"challenger_score,omitempty"`
	OpponentScore   int    `json:"opponent_score,omitempty"`
	TimedOut        bool   `json:"timed_out"`
	HouseWon        *bool  `json:"house_won,omitempty"`
	HouseKept       int64  `json:"house_kept,omitempty"`
	Refund          int64  `json:"refund,omitempty"`
}

// DuelSessionKey builds the registry key for a session
func DuelSessionKey(t DuelType, challengerID, opponentID int64, createdAt time.Time) string {
	return fmt.Sprintf("%s:%d:%d:%d", t, challengerID, opponentID, createdAt.UnixNano())
}

// IsParticipant checks if a user is one of the two players
func (d *DuelSession) IsParticipant(discordID int64) bool {
	return d.ChallengerID == discordID || d.OpponentID == discordID
}

// Pot is the combined stake of both players
func (d *DuelSession) Pot() int64 {
	return d.Bet * 2
}

// Expired reports whether the deadline has passed
func (d *DuelSession) Expired(now time.Time) bool {
	return !d.Deadline.IsZero() && !now.Before(d.Deadline)
}
