package infrastructure

import (
	"context"
	"fmt"
	"time"

	"kzcasino/models"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// DuelSweeper expires duels whose deadline has passed
type DuelSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// OverdueFlagger flags loans past their due date and returns the newly flagged ones
type OverdueFlagger interface {
	FlagOverdue(ctx context.Context, now time.Time) ([]*models.Loan, error)
}

// Scheduler runs the periodic sweeps
type Scheduler struct {
	cron  *cron.Cron
	ctx   context.Context
	duels DuelSweeper
	loans OverdueFlagger
	now   func() time.Time
}

// NewScheduler creates a scheduler whose cron specs carry a seconds field
func NewScheduler(ctx context.Context, duels DuelSweeper, loans OverdueFlagger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		ctx:   ctx,
		duels: duels,
		loans: loans,
		now:   time.Now,
	}
}

// Register adds the duel timeout and overdue loan sweeps
func (s *Scheduler) Register(duelSweepSpec, loanSweepSpec string) error {
	if _, err := s.cron.AddFunc(duelSweepSpec, s.sweepDuels); err != nil {
		return fmt.Errorf("failed to register duel sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(loanSweepSpec, s.sweepLoans); err != nil {
		return fmt.Errorf("failed to register loan sweep: %w", err)
	}
	return nil
}

// Start starts the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	log.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info("Scheduler stopped")
}

func (s *Scheduler) sweepDuels() {
	expired, err := s.duels.SweepExpired(s.ctx, s.now())
	if err != nil {
		log.WithError(err).Error("Duel sweep failed")
	}
	if expired > 0 {
		log.WithField("expired", expired).Info("Expired timed out duels")
	}
}

func (s *Scheduler) sweepLoans() {
	flagged, err := s.loans.FlagOverdue(s.ctx, s.now())
	if err != nil {
		log.WithError(err).Error("Overdue loan sweep failed")
		return
	}
	if len(flagged) > 0 {
		log.WithField("flagged", len(flagged)).Info("Flagged overdue loans")
	}
}
