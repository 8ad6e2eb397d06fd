package testutil

import (
	"time"

	"kzcasino/models"
)

// CreateTestBalanceHistory creates a test balance history entry
func CreateTestBalanceHistory(discordID int64, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		DiscordID:       discordID,
		BalanceBefore:   2500,
		BalanceAfter:    2400,
		ChangeAmount:    -100,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}

// CreateTestBalanceHistoryWithAmounts creates a test balance history with specific amounts
func CreateTestBalanceHistoryWithAmounts(discordID int64, before, after int64, transactionType models.TransactionType) *models.BalanceHistory {
	history := CreateTestBalanceHistory(discordID, transactionType)
	history.BalanceBefore = before
	history.BalanceAfter = after
	history.ChangeAmount = after - before
	return history
}

// CreateTestPrediction creates an open prediction
func CreateTestPrediction(predictorID, targetID, stake int64, choice models.PredictionChoice) *models.Prediction {
	return &models.Prediction{
		PredictorID: predictorID,
		TargetID:    targetID,
		Stake:       stake,
		Choice:      choice,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestBankLoan creates a pending bank loan in the given slot
func CreateTestBankLoan(borrowerID, principal int64, slot int) *models.Loan {
	return &models.Loan{
		Kind:         models.LoanKindBank,
		BorrowerID:   borrowerID,
		Principal:    principal,
		InterestPct:  10,
		TermDays:     7,
		TotalDue:     models.CalculateTotalDue(principal, 10),
		RemainingDue: models.CalculateTotalDue(principal, 10),
		Status:       models.LoanStatusPending,
		Slot:         &slot,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestP2PLoan creates a pending peer-to-peer loan in the given slot
func CreateTestP2PLoan(borrowerID, lenderID, principal int64, interestPct float64, slot int) *models.Loan {
	loan := CreateTestBankLoan(borrowerID, principal, slot)
	loan.Kind = models.LoanKindP2P
	loan.LenderID = &lenderID
	loan.InterestPct = interestPct
	loan.TotalDue = models.CalculateTotalDue(principal, interestPct)
	loan.RemainingDue = loan.TotalDue
	return loan
}
