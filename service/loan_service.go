package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"kzcasino/config"
	"kzcasino/events"
	"kzcasino/models"

	log "github.com/sirupsen/logrus"
)

type loanService struct {
	uowFactory UnitOfWorkFactory
	params     ParamReader
	clock      Clock
	config     *config.Config
}

// NewLoanService creates a new loan ledger service
func NewLoanService(uowFactory UnitOfWorkFactory, params ParamReader, clock Clock, cfg *config.Config) LoanService {
	return &loanService{
		uowFactory: uowFactory,
		params:     params,
		clock:      clock,
		config:     cfg,
	}
}

// lowestFreeSlot returns the smallest slot in 1..maxSlots not in used, or 0 when all are taken
func lowestFreeSlot(used []int, maxSlots int) int {
	taken := make(map[int]bool, len(used))
	for _, s := range used {
		taken[s] = true
	}
	for slot := 1; slot <= maxSlots; slot++ {
		if !taken[slot] {
			return slot
		}
	}
	return 0
}

func publishLoanTransition(uow UnitOfWork, loan *models.Loan, oldStatus models.LoanStatus, actorID int64) {
	uow.EventBus().Publish(events.LoanStateChangeEvent{
		LoanID:       loan.ID,
		Kind:         loan.Kind,
		BorrowerID:   loan.BorrowerID,
		LenderID:     loan.LenderID,
		OldStatus:    oldStatus,
		NewStatus:    loan.Status,
		Principal:    loan.Principal,
		RemainingDue: loan.RemainingDue,
		ActorID:      actorID,
	})
}

// Request files a pending loan in the borrower's lowest free slot
func (s *loanService) Request(ctx context.Context, req models.LoanRequest) (*models.Loan, error) {
	cfg := s.config

	if req.Principal < cfg.LoanMinAmount || req.Principal > cfg.LoanMaxAmount {
		return nil, validationError("loan amount must be between %d and %d", cfg.LoanMinAmount, cfg.LoanMaxAmount)
	}

	maxTerm := cfg.LoanMaxTermDays
	if req.Kind == models.LoanKindP2P {
		maxTerm = cfg.LoanP2PMaxTermDays
	}
	termDays := req.TermDays
	if termDays == 0 {
		termDays = min(cfg.LoanDefaultTermDays, maxTerm)
	}
	if termDays < 1 || termDays > maxTerm {
		return nil, validationError("loan term must be between 1 and %d days", maxTerm)
	}

	var lenderID *int64
	var interestPct float64

	switch req.Kind {
	case models.LoanKindBank:
		p, err := s.params.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load parameters: %w", err)
		}
		interestPct = p.Float("loans_fixed_interest_pct")
	case models.LoanKindP2P:
		if req.LenderID == nil {
			return nil, validationError("a peer-to-peer loan needs a lender")
		}
		if *req.LenderID == req.BorrowerID {
			return nil, validationError("you cannot lend to yourself")
		}
		if cfg.IsHouse(*req.LenderID) {
			return nil, validationError("the house does not lend, request a bank loan instead")
		}
		if math.IsNaN(req.InterestPct) || req.InterestPct < 0 || req.InterestPct > cfg.P2PMaxInterestPct {
			return nil, validationError("interest must be between 0 and %g percent", cfg.P2PMaxInterestPct)
		}
		lender := *req.LenderID
		lenderID = &lender
		interestPct = req.InterestPct
	default:
		return nil, validationError("unknown loan kind %q", req.Kind)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// The borrower row lock serializes concurrent slot allocation
	if _, err := lockAccount(ctx, uow, req.BorrowerID, cfg.StartingBalance); err != nil {
		return nil, err
	}
	if lenderID != nil {
		if err := ensureAccount(ctx, uow, *lenderID, cfg.StartingBalance); err != nil {
			return nil, err
		}
	}

	used, err := uow.LoanRepository().GetUsedSlots(ctx, req.BorrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan slots: %w", err)
	}
	slot := lowestFreeSlot(used, cfg.MaxActiveLoans)
	if slot == 0 {
		return nil, validationError("you already have %d open loans", cfg.MaxActiveLoans)
	}

	totalDue := models.CalculateTotalDue(req.Principal, interestPct)
	loan := &models.Loan{
		Kind:         req.Kind,
		LenderID:     lenderID,
		BorrowerID:   req.BorrowerID,
		Principal:    req.Principal,
		InterestPct:  interestPct,
		TermDays:     termDays,
		TotalDue:     totalDue,
		RemainingDue: totalDue,
		Status:       models.LoanStatusPending,
		Slot:         &slot,
		CreatedAt:    s.clock.Now(),
	}
	if err := uow.LoanRepository().Create(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	publishLoanTransition(uow, loan, "", req.BorrowerID)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loanID":     loan.ID,
		"kind":       loan.Kind,
		"borrowerID": loan.BorrowerID,
		"principal":  loan.Principal,
		"slot":       slot,
	}).Info("Loan requested")

	return loan, nil
}

// canDecide reports whether the user may accept or refuse the loan
func (s *loanService) canDecide(loan *models.Loan, deciderID int64) bool {
	if loan.IsP2P() {
		return loan.IsLender(deciderID)
	}
	return s.config.IsOwner(deciderID)
}

// Decide accepts or refuses a pending loan
func (s *loanService) Decide(ctx context.Context, loanID, deciderID int64, accept bool) (*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := uow.LoanRepository().GetByIDForUpdate(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, notFound("loan %d not found", loanID)
	}
	if !s.canDecide(loan, deciderID) {
		return nil, unauthorized("you cannot decide on this loan")
	}
	if loan.Status != models.LoanStatusPending {
		return nil, wrongState("loan %d was already processed", loanID)
	}

	now := s.clock.Now()
	oldStatus := loan.Status
	loan.DecidedBy = &deciderID
	loan.DecidedAt = &now

	if !accept {
		loan.Status = models.LoanStatusRejected
		loan.Slot = nil
		return s.finishTransition(ctx, uow, loan, oldStatus, deciderID)
	}

	accounts, err := lockAccounts(ctx, uow, s.config.StartingBalance, s.participants(loan)...)
	if err != nil {
		return nil, err
	}

	if loan.IsP2P() {
		lender := accounts[*loan.LenderID]
		if lender.Balance < loan.Principal {
			// The lender cannot fund it: cancel without moving funds
			loan.Status = models.LoanStatusCancelled
			loan.Slot = nil
			log.WithFields(log.Fields{
				"loanID":   loan.ID,
				"lenderID": *loan.LenderID,
				"balance":  lender.Balance,
			}).Info("Loan auto-cancelled, lender balance too low")
			return s.finishTransition(ctx, uow, loan, oldStatus, deciderID)
		}

		if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
			DiscordID:   *loan.LenderID,
			Delta:       -loan.Principal,
			Type:        models.TransactionTypeLoanFunding,
			RelatedID:   &loan.ID,
			RelatedType: models.RelatedTypeLoan,
			Metadata:    map[string]any{"borrower_id": loan.BorrowerID},
		}); err != nil {
			return nil, err
		}
	}

	if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID:   loan.BorrowerID,
		Delta:       loan.Principal,
		Type:        models.TransactionTypeLoanDisbursed,
		RelatedID:   &loan.ID,
		RelatedType: models.RelatedTypeLoan,
		Metadata:    map[string]any{"kind": string(loan.Kind)},
	}); err != nil {
		return nil, err
	}

	dueAt := now.Add(time.Duration(loan.TermDays) * 24 * time.Hour)
	loan.Status = models.LoanStatusActive
	loan.RemainingDue = loan.TotalDue
	loan.ApprovedAt = &now
	loan.DueAt = &dueAt

	return s.finishTransition(ctx, uow, loan, oldStatus, deciderID)
}

func (s *loanService) participants(loan *models.Loan) []int64 {
	if loan.LenderID != nil {
		return []int64{loan.BorrowerID, *loan.LenderID}
	}
	return []int64{loan.BorrowerID}
}

// finishTransition persists the loan, publishes the transition and commits
func (s *loanService) finishTransition(ctx context.Context, uow UnitOfWork, loan *models.Loan, oldStatus models.LoanStatus, actorID int64) (*models.Loan, error) {
	if err := uow.LoanRepository().Update(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	publishLoanTransition(uow, loan, oldStatus, actorID)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"loanID":    loan.ID,
		"oldStatus": oldStatus,
		"newStatus": loan.Status,
		"actorID":   actorID,
	}).Info("Loan state changed")

	return loan, nil
}

// Cancel withdraws a pending loan
func (s *loanService) Cancel(ctx context.Context, loanID, actorID int64) (*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := uow.LoanRepository().GetByIDForUpdate(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, notFound("loan %d not found", loanID)
	}
	if !loan.CanBeCancelledBy(actorID) {
		return nil, unauthorized("you cannot cancel this loan")
	}
	if loan.Status != models.LoanStatusPending {
		return nil, wrongState("only pending loans can be cancelled")
	}

	now := s.clock.Now()
	oldStatus := loan.Status
	loan.Status = models.LoanStatusCancelled
	loan.Slot = nil
	loan.DecidedBy = &actorID
	loan.DecidedAt = &now

	return s.finishTransition(ctx, uow, loan, oldStatus, actorID)
}

// Repay pays down an active loan; a nil amount pays the full remaining due
func (s *loanService) Repay(ctx context.Context, loanID, payerID int64, amount *int64) (*models.RepaymentResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := uow.LoanRepository().GetByIDForUpdate(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, notFound("loan %d not found", loanID)
	}
	if loan.BorrowerID != payerID {
		return nil, unauthorized("only the borrower can repay this loan")
	}
	if loan.Status != models.LoanStatusActive {
		return nil, wrongState("loan %d is not active", loanID)
	}

	pay := loan.RemainingDue
	if amount != nil {
		pay = min(max(1, *amount), loan.RemainingDue)
	}

	accounts, err := lockAccounts(ctx, uow, s.config.StartingBalance, s.participants(loan)...)
	if err != nil {
		return nil, err
	}
	borrower := accounts[loan.BorrowerID]
	if borrower.Balance < pay {
		return nil, insufficientFunds(borrower.Balance, pay)
	}

	change, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID:   loan.BorrowerID,
		Delta:       -pay,
		Type:        models.TransactionTypeLoanRepayment,
		RelatedID:   &loan.ID,
		RelatedType: models.RelatedTypeLoan,
		Metadata:    map[string]any{"remaining_before": loan.RemainingDue},
	})
	if err != nil {
		return nil, err
	}
	if loan.IsP2P() {
		if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
			DiscordID:   *loan.LenderID,
			Delta:       pay,
			Type:        models.TransactionTypeLoanReceived,
			RelatedID:   &loan.ID,
			RelatedType: models.RelatedTypeLoan,
			Metadata:    map[string]any{"borrower_id": loan.BorrowerID},
		}); err != nil {
			return nil, err
		}
	}

	oldStatus := loan.Status
	loan.RemainingDue -= pay
	result := &models.RepaymentResult{
		Loan:          loan,
		Paid:          pay,
		BorrowerAfter: change.After,
	}

	if loan.RemainingDue == 0 {
		now := s.clock.Now()
		loan.Status = models.LoanStatusRepaid
		loan.Slot = nil
		loan.RepaidAt = &now
		result.FullyRepaid = true
	}

	if _, err := s.finishTransition(ctx, uow, loan, oldStatus, payerID); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns a loan by ID
func (s *loanService) Get(ctx context.Context, loanID int64) (*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	loan, err := uow.LoanRepository().GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, notFound("loan %d not found", loanID)
	}
	return loan, nil
}

// ListForUser returns the loans visible to a user in the given view
func (s *loanService) ListForUser(ctx context.Context, discordID int64, view models.LoanListView) ([]*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	repo := uow.LoanRepository()
	switch view {
	case models.LoanListOpen, "":
		loans, err := repo.GetOpenByUser(ctx, discordID)
		if err != nil {
			return nil, fmt.Errorf("failed to get open loans: %w", err)
		}
		return loans, nil
	case models.LoanListPending:
		loans, err := repo.GetPendingByLender(ctx, discordID)
		if err != nil {
			return nil, fmt.Errorf("failed to get pending loans: %w", err)
		}
		if s.config.IsOwner(discordID) {
			bank, err := repo.GetPendingBank(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to get pending bank loans: %w", err)
			}
			loans = append(loans, bank...)
		}
		return loans, nil
	case models.LoanListHistory:
		loans, err := repo.GetHistoryByUser(ctx, discordID, s.config.LoanHistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to get loan history: %w", err)
		}
		return loans, nil
	}
	return nil, validationError("unknown loan view %q", view)
}

// FlagOverdue stamps and announces active loans past their due date.
// Each loan is flagged once; the stamp is written only if still unset.
func (s *loanService) FlagOverdue(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	candidates, err := uow.LoanRepository().GetOverdueUnnotified(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get overdue loans: %w", err)
	}

	var flagged []*models.Loan
	for _, loan := range candidates {
		marked, err := uow.LoanRepository().MarkOverdueNotified(ctx, loan.ID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to flag overdue loan: %w", err)
		}
		if !marked {
			continue
		}
		stamp := now
		loan.OverdueNotifiedAt = &stamp
		flagged = append(flagged, loan)

		daysOverdue := 0
		if loan.DueAt != nil {
			daysOverdue = int(now.Sub(*loan.DueAt).Hours() / 24)
		}
		uow.EventBus().Publish(events.LoanOverdueEvent{
			LoanID:       loan.ID,
			BorrowerID:   loan.BorrowerID,
			LenderID:     loan.LenderID,
			RemainingDue: loan.RemainingDue,
			DaysOverdue:  daysOverdue,
		})
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(flagged) > 0 {
		log.WithField("count", len(flagged)).Info("Overdue loans flagged")
	}
	return flagged, nil
}
