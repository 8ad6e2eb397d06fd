package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kzcasino/database"
	"kzcasino/models"

	"github.com/jackc/pgx/v5"
)

const loanColumns = `id, kind, lender_id, borrower_id, principal, interest_pct, term_days, total_due,
	remaining_due, status, slot, decided_by, created_at, decided_at, approved_at, due_at, repaid_at,
	overdue_notified_at`

// LoanRepository implements the LoanRepository interface
type LoanRepository struct {
	q queryable
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *database.DB) *LoanRepository {
	return &LoanRepository{q: db.Pool}
}

// newLoanRepositoryWithTx creates a new loan repository with a transaction
func newLoanRepositoryWithTx(tx queryable) *LoanRepository {
	return &LoanRepository{q: tx}
}

func scanLoan(row pgx.Row) (*models.Loan, error) {
	var l models.Loan
	err := row.Scan(
		&l.ID,
		&l.Kind,
		&l.LenderID,
		&l.BorrowerID,
		&l.Principal,
		&l.InterestPct,
		&l.TermDays,
		&l.TotalDue,
		&l.RemainingDue,
		&l.Status,
		&l.Slot,
		&l.DecidedBy,
		&l.CreatedAt,
		&l.DecidedAt,
		&l.ApprovedAt,
		&l.DueAt,
		&l.RepaidAt,
		&l.OverdueNotifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a loan and fills its ID
func (r *LoanRepository) Create(ctx context.Context, loan *models.Loan) error {
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO loans
		(kind, lender_id, borrower_id, principal, interest_pct, term_days, total_due, remaining_due, status, slot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.q.QueryRow(ctx, query,
		loan.Kind,
		loan.LenderID,
		loan.BorrowerID,
		loan.Principal,
		loan.InterestPct,
		loan.TermDays,
		loan.TotalDue,
		loan.RemainingDue,
		loan.Status,
		loan.Slot,
		loan.CreatedAt,
	).Scan(&loan.ID)
	if err != nil {
		return fmt.Errorf("failed to create loan for %d: %w", loan.BorrowerID, err)
	}

	return nil
}

// GetByID retrieves a loan, or nil
func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*models.Loan, error) {
	loan, err := scanLoan(r.q.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan %d: %w", id, err)
	}
	return loan, nil
}

// GetByIDForUpdate retrieves and locks a loan, or nil
func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Loan, error) {
	loan, err := scanLoan(r.q.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock loan %d: %w", id, err)
	}
	return loan, nil
}

// Update persists status, balances, slot and timestamps
func (r *LoanRepository) Update(ctx context.Context, loan *models.Loan) error {
	query := `
		UPDATE loans SET
			remaining_due = $2,
			status = $3,
			slot = $4,
			decided_by = $5,
			decided_at = $6,
			approved_at = $7,
			due_at = $8,
			repaid_at = $9,
			overdue_notified_at = $10
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		loan.ID,
		loan.RemainingDue,
		loan.Status,
		loan.Slot,
		loan.DecidedBy,
		loan.DecidedAt,
		loan.ApprovedAt,
		loan.DueAt,
		loan.RepaidAt,
		loan.OverdueNotifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan %d: %w", loan.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("loan %d not found", loan.ID)
	}
	return nil
}

// GetUsedSlots returns the slots occupied by a borrower's open loans
func (r *LoanRepository) GetUsedSlots(ctx context.Context, borrowerID int64) ([]int, error) {
	rows, err := r.q.Query(ctx, `
		SELECT slot FROM loans
		WHERE borrower_id = $1 AND slot IS NOT NULL
		ORDER BY slot
		FOR UPDATE
	`, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan slots of %d: %w", borrowerID, err)
	}
	defer rows.Close()

	var slots []int
	for rows.Next() {
		var slot int
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("failed to scan loan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loan slots: %w", err)
	}

	return slots, nil
}

// GetOpenByUser returns pending and active loans where the user is borrower or lender
func (r *LoanRepository) GetOpenByUser(ctx context.Context, discordID int64) ([]*models.Loan, error) {
	return r.list(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE (borrower_id = $1 OR lender_id = $1) AND status IN ('pending', 'active')
		ORDER BY id
	`, discordID)
}

// GetPendingByLender returns pending p2p loans awaiting the lender's decision
func (r *LoanRepository) GetPendingByLender(ctx context.Context, lenderID int64) ([]*models.Loan, error) {
	return r.list(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE lender_id = $1 AND kind = 'p2p' AND status = 'pending'
		ORDER BY id
	`, lenderID)
}

// GetPendingBank returns every pending bank loan
func (r *LoanRepository) GetPendingBank(ctx context.Context) ([]*models.Loan, error) {
	return r.list(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE kind = 'bank' AND status = 'pending'
		ORDER BY id
	`)
}

// GetHistoryByUser returns terminal loans where the user took part, newest first
func (r *LoanRepository) GetHistoryByUser(ctx context.Context, discordID int64, limit int) ([]*models.Loan, error) {
	return r.list(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE (borrower_id = $1 OR lender_id = $1) AND status IN ('repaid', 'rejected', 'cancelled')
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, discordID, limit)
}

// GetOverdueUnnotified returns active loans due before now that were not flagged yet
func (r *LoanRepository) GetOverdueUnnotified(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	return r.list(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE status = 'active' AND due_at < $1 AND overdue_notified_at IS NULL
		ORDER BY due_at, id
	`, now)
}

// MarkOverdueNotified stamps overdue_notified_at if still unset
func (r *LoanRepository) MarkOverdueNotified(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE loans SET overdue_notified_at = $2
		WHERE id = $1 AND overdue_notified_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to flag loan %d overdue: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LoanRepository) list(ctx context.Context, query string, args ...any) ([]*models.Loan, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}

	return loans, nil
}
