package models

import (
	"time"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial          TransactionType = "initial"
	TransactionTypeAdminAdjust      TransactionType = "admin_adjust"
	TransactionTypeAdminWipe        TransactionType = "admin_wipe"
	TransactionTypeGameStake        TransactionType = "game_stake"
	TransactionTypeGamePayout       TransactionType = "game_payout"
	TransactionTypeGamePush         TransactionType = "game_push"
	TransactionTypePredictionStake  TransactionType = "prediction_stake"
	TransactionTypePredictionRefund TransactionType = "prediction_refund"
	TransactionTypePredictionWin    TransactionType = "prediction_win"
	TransactionTypePredictionPayout TransactionType = "prediction_payout"
	TransactionTypeLoanFunding      TransactionType = "loan_funding"
	TransactionTypeLoanDisbursed    TransactionType = "loan_disbursed"
	TransactionTypeLoanRepayment    TransactionType = "loan_repayment"
	TransactionTypeLoanReceived     TransactionType = "loan_received"
	TransactionTypeDuelEscrow       TransactionType = "duel_escrow"
	TransactionTypeDuelRefund       TransactionType = "duel_refund"
	TransactionTypeDuelWin          TransactionType = "duel_win"
	TransactionTypeTransferOut      TransactionType = "transfer_out"
	TransactionTypeTransferIn       TransactionType = "transfer_in"
	TransactionTypeClaimDaily       TransactionType = "claim_daily"
	TransactionTypeClaimWeekly      TransactionType = "claim_weekly"
	TransactionTypeClaimWork        TransactionType = "claim_work"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeGame       RelatedType = "game"
	RelatedTypePrediction RelatedType = "prediction"
	RelatedTypeLoan       RelatedType = "loan"
	RelatedTypeDuel       RelatedType = "duel"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id"`
	DiscordID           int64           `db:"discord_id"`
	BalanceBefore       int64           `db:"balance_before"`
	BalanceAfter        int64           `db:"balance_after"`
	ChangeAmount        int64           `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedID           *int64          `db:"related_id"`
	RelatedType         *RelatedType    `db:"related_type"`
	CreatedAt           time.Time       `db:"created_at"`
}

// IsCredit reports whether the change increased the balance
func (h *BalanceHistory) IsCredit() bool {
	return h.ChangeAmount > 0
}

// BalanceChange is the before/after of a single clamped ledger mutation
type BalanceChange struct {
	DiscordID int64
	Before    int64
	After     int64
}

// Applied returns the amount that actually moved after clamping
func (c *BalanceChange) Applied() int64 {
	return c.After - c.Before
}
