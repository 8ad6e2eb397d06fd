package service

import (
	"context"
	"fmt"
	"time"

	"kzcasino/config"
	"kzcasino/models"

	log "github.com/sirupsen/logrus"
)

// claimKeyPrefix namespaces last-claim stamps in the settings table
const claimKeyPrefix = "claim_"

func claimKey(kind models.ClaimKind, discordID int64) string {
	return fmt.Sprintf("%s%s_%d", claimKeyPrefix, kind, discordID)
}

type rewardService struct {
	uowFactory UnitOfWorkFactory
	params     ParamReader
	rng        RandomSource
	clock      Clock
	config     *config.Config
}

// NewRewardService creates the daily, weekly and work claim service
func NewRewardService(uowFactory UnitOfWorkFactory, params ParamReader, rng RandomSource, clock Clock, cfg *config.Config) RewardService {
	return &rewardService{
		uowFactory: uowFactory,
		params:     params,
		rng:        rng,
		clock:      clock,
		config:     cfg,
	}
}

func (s *rewardService) cooldown(kind models.ClaimKind) time.Duration {
	switch kind {
	case models.ClaimWeekly:
		return time.Duration(s.config.WeeklyCooldownDays) * 24 * time.Hour
	case models.ClaimWork:
		return time.Duration(s.config.WorkCooldownMinutes) * time.Minute
	}
	return time.Duration(s.config.DailyCooldownHours) * time.Hour
}

// amount draws the payout; work pays uniformly in [work_min, work_max]
func (s *rewardService) amount(kind models.ClaimKind, p *Params) int64 {
	switch kind {
	case models.ClaimWeekly:
		return p.Int("weekly_amount")
	case models.ClaimWork:
		lo, hi := p.Int("work_min"), p.Int("work_max")
		if hi < lo {
			lo, hi = hi, lo
		}
		return lo + int64(s.rng.IntN(int(hi-lo+1)))
	}
	return p.Int("daily_amount")
}

// lastClaim returns the stored stamp, or nil when the reward was never collected
func lastClaim(ctx context.Context, uow UnitOfWork, kind models.ClaimKind, discordID int64) (*time.Time, error) {
	raw, err := uow.SettingRepository().Get(ctx, claimKey(kind, discordID))
	if err != nil {
		return nil, fmt.Errorf("failed to get last %s claim: %w", kind, err)
	}
	if raw == nil {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339Nano, *raw)
	if err != nil {
		log.WithFields(log.Fields{
			"discordID": discordID,
			"kind":      kind,
			"value":     *raw,
		}).Warn("Ignoring unreadable claim stamp")
		return nil, nil
	}
	return &at, nil
}

// Claim collects a reward once its cooldown has elapsed
func (s *rewardService) Claim(ctx context.Context, discordID int64, kind models.ClaimKind) (*models.ClaimResult, error) {
	if _, err := models.ParseClaimKind(string(kind)); err != nil {
		return nil, validationError("unknown claim %q", kind)
	}

	p, err := s.params.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}
	amount := s.amount(kind, p)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// The account row lock serializes concurrent claims by the same user
	if _, err := lockAccount(ctx, uow, discordID, s.config.StartingBalance); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	cooldown := s.cooldown(kind)
	last, err := lastClaim(ctx, uow, kind, discordID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		if readyAt := last.Add(cooldown); now.Before(readyAt) {
			return nil, wrongState("%s is on cooldown for %s", kind, readyAt.Sub(now).Round(time.Second))
		}
	}

	change, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID: discordID,
		Delta:     amount,
		Type:      kind.TransactionType(),
		Metadata:  map[string]any{"claim": string(kind)},
	})
	if err != nil {
		return nil, err
	}
	if err := uow.SettingRepository().Set(ctx, claimKey(kind, discordID), now.UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("failed to store %s claim: %w", kind, err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"discordID": discordID,
		"kind":      kind,
		"amount":    amount,
		"balance":   change.After,
	}).Info("Reward claimed")

	return &models.ClaimResult{
		Kind:    kind,
		Amount:  change.Applied(),
		Balance: change.After,
		NextAt:  now.Add(cooldown),
	}, nil
}

// Cooldowns reports when each reward can next be collected
func (s *rewardService) Cooldowns(ctx context.Context, discordID int64) ([]models.ClaimStatus, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	now := s.clock.Now()
	statuses := make([]models.ClaimStatus, 0, len(models.ClaimKinds))
	for _, kind := range models.ClaimKinds {
		last, err := lastClaim(ctx, uow, kind, discordID)
		if err != nil {
			return nil, err
		}
		status := models.ClaimStatus{Kind: kind, ReadyAt: now}
		if last != nil {
			status.ReadyAt = last.Add(s.cooldown(kind))
			status.Remaining = max(0, status.ReadyAt.Sub(now))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
