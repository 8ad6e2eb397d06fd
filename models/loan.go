package models

import (
	"math"
	"time"
)

// LoanKind distinguishes bank-issued loans from peer-to-peer loans
type LoanKind string

const (
	LoanKindBank LoanKind = "bank"
	LoanKindP2P  LoanKind = "p2p"
)

// LoanStatus represents the state of a loan
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusCancelled LoanStatus = "cancelled"
	LoanStatusRepaid    LoanStatus = "repaid"
)

// Loan represents a bank or peer-to-peer loan
type Loan struct {
	ID                int64      `db:"id"`
	Kind              LoanKind   `db:"kind"`
	LenderID          *int64     `db:"lender_id"`
	BorrowerID        int64      `db:"borrower_id"`
	Principal         int64      `db:"principal"`
	InterestPct       float64    `db:"interest_pct"`
	TermDays          int        `db:"term_days"`
	TotalDue          int64      `db:"total_due"`
	RemainingDue      int64      `db:"remaining_due"`
	Status            LoanStatus `db:"status"`
	Slot              *int       `db:"slot"`
	DecidedBy         *int64     `db:"decided_by"`
	CreatedAt         time.Time  `db:"created_at"`
	DecidedAt         *time.Time `db:"decided_at"`
	ApprovedAt        *time.Time `db:"approved_at"`
	DueAt             *time.Time `db:"due_at"`
	RepaidAt          *time.Time `db:"repaid_at"`
	OverdueNotifiedAt *time.Time `db:"overdue_notified_at"`
}

// LoanRequest is the input to a new loan request
type LoanRequest struct {
	Kind        LoanKind
	BorrowerID  int64
	LenderID    *int64 // required for p2p, ignored for bank
	Principal   int64
	InterestPct float64 // p2p only; bank loans use the configured rate
	TermDays    int // 0 selects the default term
}

// LoanListView selects which loans ListForUser returns
type LoanListView string

const (
	LoanListOpen    LoanListView = "open"
	LoanListPending LoanListView = "pending"
	LoanListHistory LoanListView = "history"
)

// RepaymentResult describes a single repayment
type RepaymentResult struct {
	Loan          *Loan
	Paid          int64
	FullyRepaid   bool
	BorrowerAfter int64
}

// IsP2P reports whether the loan is funded by another player
func (l *Loan) IsP2P() bool {
	return l.Kind == LoanKindP2P
}

// IsOpen reports whether the loan still occupies a slot
func (l *Loan) IsOpen() bool {
	return l.Status == LoanStatusPending || l.Status == LoanStatusActive
}

// IsTerminal reports whether no further transition is possible
func (l *Loan) IsTerminal() bool {
	return l.Status == LoanStatusRepaid || l.Status == LoanStatusRejected || l.Status == LoanStatusCancelled
}

// IsParticipant checks if a user is the borrower or the lender
func (l *Loan) IsParticipant(discordID int64) bool {
	return l.BorrowerID == discordID || (l.LenderID != nil && *l.LenderID == discordID)
}

// IsLender checks if the user funds the loan
func (l *Loan) IsLender(discordID int64) bool {
	return l.LenderID != nil && *l.LenderID == discordID
}

// CanBeCancelledBy checks if the user may cancel the pending loan
func (l *Loan) CanBeCancelledBy(discordID int64) bool {
	if l.BorrowerID == discordID {
		return true
	}
	return l.IsP2P() && l.IsLender(discordID)
}

// IsOverdue reports whether an active loan has passed its due date
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status == LoanStatusActive && l.DueAt != nil && now.After(*l.DueAt)
}

// CalculateTotalDue returns principal*(1+interest/100) rounded half to even
func CalculateTotalDue(principal int64, interestPct float64) int64 {
	return int64(math.RoundToEven(float64(principal) * (100 + interestPct) / 100))
}
