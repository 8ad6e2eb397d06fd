package service

import (
	"context"
	"fmt"
	"sync"

	"kzcasino/config"
	"kzcasino/events"
	"kzcasino/models"

	log "github.com/sirupsen/logrus"
)

type settlementService struct {
	uowFactory UnitOfWorkFactory
	params     ParamReader
	rng        RandomSource
	clock      Clock
	progress   ProgressHook
	config     *config.Config

	hooksMu sync.RWMutex
	hooks   []OutcomeHook
}

// NewSettlementService creates a new game settlement service. progress may be nil.
func NewSettlementService(uowFactory UnitOfWorkFactory, params ParamReader, rng RandomSource, clock Clock, progress ProgressHook, cfg *config.Config) SettlementService {
	return &settlementService{
		uowFactory: uowFactory,
		params:     params,
		rng:        rng,
		clock:      clock,
		progress:   progress,
		config:     cfg,
	}
}

// RegisterOutcomeHook adds a hook run after every committed win or loss
func (s *settlementService) RegisterOutcomeHook(hook OutcomeHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// validateStake checks the stake against the bet limits and the current balance
func validateStake(p *Params, stake, balance int64) error {
	minBet := p.Int("min_bet")
	maxBet := p.Int("max_bet")

	if stake < minBet {
		return validationError("minimum bet is %d", minBet)
	}
	if stake > maxBet && !(p.Bool("allow_allin_over_max_bet") && stake == balance) {
		return validationError("maximum bet is %d", maxBet)
	}
	if stake > balance {
		return insufficientFunds(balance, stake)
	}
	return nil
}

// Play validates the stake, plays the game and settles it atomically
func (s *settlementService) Play(ctx context.Context, req models.PlayRequest) (*models.GameOutcome, error) {
	if _, err := models.ParseGameName(string(req.Game)); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if req.Stake <= 0 {
		return nil, validationError("stake must be positive")
	}

	p, err := s.params.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}

	choice, err := parseGameChoice(req.Game, req.Choice, p)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := lockAccount(ctx, uow, req.UserID, s.config.StartingBalance)
	if err != nil {
		return nil, err
	}
	balanceBefore := account.Balance

	if err := validateStake(p, req.Stake, balanceBefore); err != nil {
		return nil, err
	}

	metadata := map[string]any{"game": string(req.Game)}
	if req.Choice != "" {
		metadata["choice"] = req.Choice
	}

	// Debit the stake before the outcome is drawn
	if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID:   req.UserID,
		Delta:       -req.Stake,
		Type:        models.TransactionTypeGameStake,
		RelatedType: models.RelatedTypeGame,
		Metadata:    metadata,
	}); err != nil {
		return nil, err
	}

	roll := resolveGame(req.Game, choice, s.rng, p, req.Stake)

	flipped := false
	if roll.Result == models.GameResultWin && flipAllInWin(s.rng, p, balanceBefore, req.Stake) {
		flipped = true
		roll.Result = models.GameResultLoss
		roll.Profit = 0
	}

	outcome := &models.GameOutcome{
		Game:          req.Game,
		UserID:        req.UserID,
		Stake:         req.Stake,
		Result:        roll.Result,
		Multiplier:    roll.Multiplier,
		BalanceBefore: balanceBefore,
		AllInFlipped:  flipped,
		Detail:        roll.Detail,
	}

	statDelta := models.StatsDelta{Games: 1}
	gameDelta := models.GameStatDelta{Games: 1}

	switch roll.Result {
	case models.GameResultWin:
		outcome.Payout = req.Stake + roll.Profit
		outcome.Profit = roll.Profit
		outcome.Multiplier = roll.Multiplier
		statDelta.Wins = 1
		gameDelta.Wins = 1
		gameDelta.Profit = roll.Profit
		if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
			DiscordID:   req.UserID,
			Delta:       outcome.Payout,
			Type:        models.TransactionTypeGamePayout,
			RelatedType: models.RelatedTypeGame,
			Metadata:    metadata,
		}); err != nil {
			return nil, err
		}
	case models.GameResultPush:
		outcome.Payout = req.Stake
		if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
			DiscordID:   req.UserID,
			Delta:       req.Stake,
			Type:        models.TransactionTypeGamePush,
			RelatedType: models.RelatedTypeGame,
			Metadata:    metadata,
		}); err != nil {
			return nil, err
		}
	case models.GameResultLoss:
		outcome.Multiplier = 0
		outcome.Profit = -req.Stake
		statDelta.Losses = 1
		gameDelta.Losses = 1
		gameDelta.Profit = -req.Stake
	}
	outcome.BalanceAfter = balanceBefore - req.Stake + outcome.Payout

	if err := uow.AccountRepository().IncrementStats(ctx, req.UserID, statDelta); err != nil {
		return nil, fmt.Errorf("failed to record stats: %w", err)
	}
	if err := uow.GameStatRepository().Increment(ctx, req.UserID, req.Game, gameDelta); err != nil {
		return nil, fmt.Errorf("failed to record game stats: %w", err)
	}

	uow.EventBus().Publish(events.GamePlayedEvent{
		UserID:       req.UserID,
		Game:         req.Game,
		Result:       outcome.Result,
		Stake:        req.Stake,
		Payout:       outcome.Payout,
		AllInFlipped: flipped,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"discordID": req.UserID,
		"game":      req.Game,
		"stake":     req.Stake,
		"result":    outcome.Result,
		"payout":    outcome.Payout,
		"flipped":   flipped,
	}).Debug("Game settled")

	// The settlement is committed; follow-up work must not be dropped with the request
	ctx = context.WithoutCancel(ctx)

	if outcome.Result != models.GameResultPush {
		s.runOutcomeHooks(ctx, models.OutcomeRecord{
			AccountID:  req.UserID,
			Game:       req.Game,
			Result:     outcome.Result,
			RecordedAt: s.clock.Now(),
		})
	}

	if s.progress != nil {
		xp := s.config.XPPerGame
		switch outcome.Result {
		case models.GameResultWin:
			xp += s.config.XPBonusWin
		case models.GameResultLoss:
			xp += s.config.XPBonusLoss
		}
		s.progress.CreditProgress(ctx, req.UserID, ProgressKindGame, xp)
	}

	return outcome, nil
}

// runOutcomeHooks runs after the settlement commit. A crash between the commit and
// the hooks leaves open predictions on the player unresolved until the next game.
func (s *settlementService) runOutcomeHooks(ctx context.Context, record models.OutcomeRecord) {
	s.hooksMu.RLock()
	hooks := make([]OutcomeHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.RUnlock()

	for _, hook := range hooks {
		if err := hook.OnOutcomeRecorded(ctx, record); err != nil {
			log.WithFields(log.Fields{
				"discordID": record.AccountID,
				"game":      record.Game,
				"result":    record.Result,
				"error":     err,
			}).Error("Outcome hook failed")
		}
	}
}

// GameStats returns per-game statistics for an account
func (s *settlementService) GameStats(ctx context.Context, discordID int64) ([]*models.GameStat, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stats, err := uow.GameStatRepository().GetByUser(ctx, discordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game stats: %w", err)
	}
	return stats, nil
}
