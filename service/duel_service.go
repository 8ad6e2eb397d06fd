package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"kzcasino/config"
	"kzcasino/events"
	"kzcasino/models"

	log "github.com/sirupsen/logrus"
)

// duelEntry is a live session guarded by its own lock
type duelEntry struct {
	mu      sync.Mutex
	session models.DuelSession
}

type duelService struct {
	uowFactory UnitOfWorkFactory
	params     ParamReader
	rng        RandomSource
	clock      Clock
	progress   ProgressHook
	config     *config.Config

	mu       sync.RWMutex
	sessions map[string]*duelEntry
}

// NewDuelService creates a duel session manager. Sessions live in memory only. progress may be nil.
func NewDuelService(uowFactory UnitOfWorkFactory, params ParamReader, rng RandomSource, clock Clock, progress ProgressHook, cfg *config.Config) DuelService {
	return &duelService{
		uowFactory: uowFactory,
		params:     params,
		rng:        rng,
		clock:      clock,
		progress:   progress,
		config:     cfg,
		sessions:   make(map[string]*duelEntry),
	}
}

// snapshot returns a copy of the session safe to hand to callers
func snapshot(s *models.DuelSession) *models.DuelSession {
	c := *s
	c.ChallengerHand = append([]models.Card(nil), s.ChallengerHand...)
	c.OpponentHand = append([]models.Card(nil), s.OpponentHand...)
	if s.ChallengerMove != nil {
		m := *s.ChallengerMove
		c.ChallengerMove = &m
	}
	if s.OpponentMove != nil {
		m := *s.OpponentMove
		c.OpponentMove = &m
	}
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return &c
}

func (s *duelService) lookup(key string) (*duelEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[key]
	if !ok {
		return nil, notFound("duel %s not found", key)
	}
	return entry, nil
}

func (s *duelService) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Challenge opens a session, or plays against the house immediately
func (s *duelService) Challenge(ctx context.Context, req models.ChallengeRequest) (*models.DuelSession, error) {
	if _, err := models.ParseDuelType(string(req.Type)); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if req.Bet <= 0 {
		return nil, validationError("bet must be positive")
	}

	againstHouse := req.AgainstHouse || s.config.IsHouse(req.OpponentID)
	if againstHouse {
		req.OpponentID = s.config.HouseDiscordID
		req.AgainstHouse = true
	}
	if req.ChallengerID == req.OpponentID {
		return nil, validationError("you cannot challenge yourself")
	}

	p, err := s.params.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}

	if againstHouse {
		return s.playHouse(ctx, req, p)
	}

	// The challenger's balance is checked, not escrowed, until the opponent accepts
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	challenger, err := lockAccount(ctx, uow, req.ChallengerID, s.config.StartingBalance)
	if err != nil {
		return nil, err
	}
	if challenger.Balance < req.Bet {
		return nil, insufficientFunds(challenger.Balance, req.Bet)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	now := s.clock.Now()
	session := models.DuelSession{
		Key:          models.DuelSessionKey(req.Type, req.ChallengerID, req.OpponentID, now),
		Type:         req.Type,
		ChallengerID: req.ChallengerID,
		OpponentID:   req.OpponentID,
		Bet:          req.Bet,
		State:        models.DuelStatePending,
		CreatedAt:    now,
		Deadline:     now.Add(time.Duration(p.Int("pvp_timeout")) * time.Second),
	}

	s.mu.Lock()
	s.sessions[session.Key] = &duelEntry{session: session}
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"key":          session.Key,
		"type":         session.Type,
		"challengerID": session.ChallengerID,
		"opponentID":   session.OpponentID,
		"bet":          session.Bet,
	}).Info("Duel challenge created")

	return snapshot(&session), nil
}

// playHouse settles a duel against the automated house player in one transaction.
// Only the human's stake is escrowed and the house never pays out.
func (s *duelService) playHouse(ctx context.Context, req models.ChallengeRequest, p *Params) (*models.DuelSession, error) {
	if !p.Bool("bot_enabled") {
		return nil, validationError("duels against the house are disabled")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	player, err := lockAccount(ctx, uow, req.ChallengerID, s.config.StartingBalance)
	if err != nil {
		return nil, err
	}
	if player.Balance < req.Bet {
		return nil, insufficientFunds(player.Balance, req.Bet)
	}

	now := s.clock.Now()
	key := models.DuelSessionKey(req.Type, req.ChallengerID, req.OpponentID, now)
	metadata := map[string]any{"duel": key, "against_house": true}

	if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID:   req.ChallengerID,
		Delta:       -req.Bet,
		Type:        models.TransactionTypeDuelEscrow,
		RelatedType: models.RelatedTypeDuel,
		Metadata:    metadata,
	}); err != nil {
		return nil, err
	}

	houseWon := s.rng.Float64() < p.Float("bot_win_chance")
	result := &models.DuelResult{Pot: req.Bet, HouseWon: &houseWon}
	playerID, houseID := req.ChallengerID, req.OpponentID

	if houseWon {
		result.WinnerID = &houseID
		result.LoserID = &playerID
		result.HouseKept = req.Bet
		if err := uow.AccountRepository().IncrementPvPStats(ctx, playerID, models.PvPStatsDelta{Games: 1, Losses: 1, Profit: -req.Bet}); err != nil {
			return nil, fmt.Errorf("failed to record pvp stats: %w", err)
		}
		if err := uow.AccountRepository().IncrementBotStats(ctx, playerID, 0, 1); err != nil {
			return nil, fmt.Errorf("failed to record house duel stats: %w", err)
		}
	} else {
		kept := req.Bet * p.Int("bot_loss_penalty") / 100
		refund := max(0, req.Bet-kept)
		result.WinnerID = &playerID
		result.LoserID = &houseID
		result.HouseKept = kept
		result.Refund = refund
		if refund > 0 {
			if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
				DiscordID:   playerID,
				Delta:       refund,
				Type:        models.TransactionTypeDuelRefund,
				RelatedType: models.RelatedTypeDuel,
				Metadata:    metadata,
			}); err != nil {
				return nil, err
			}
		}
		if err := uow.AccountRepository().IncrementPvPStats(ctx, playerID, models.PvPStatsDelta{Games: 1, Wins: 1, Profit: -kept}); err != nil {
			return nil, fmt.Errorf("failed to record pvp stats: %w", err)
		}
		if err := uow.AccountRepository().IncrementBotStats(ctx, playerID, 1, 0); err != nil {
			return nil, fmt.Errorf("failed to record house duel stats: %w", err)
		}
	}

	uow.EventBus().Publish(events.DuelResolvedEvent{
		SessionKey:   key,
		DuelType:     req.Type,
		ChallengerID: playerID,
		OpponentID:   houseID,
		Bet:          req.Bet,
		AgainstHouse: true,
		WinnerID:     result.WinnerID,
		WinnerGain:   result.Refund,
		Tax:          result.HouseKept,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"key":      key,
		"playerID": playerID,
		"bet":      req.Bet,
		"houseWon": houseWon,
		"kept":     result.HouseKept,
	}).Info("House duel resolved")

	s.creditDuelProgress(ctx, playerID, !houseWon, false)

	return &models.DuelSession{
		Key:          key,
		Type:         req.Type,
		ChallengerID: playerID,
		OpponentID:   houseID,
		Bet:          req.Bet,
		AgainstHouse: true,
		State:        models.DuelStateResolved,
		Escrowed:     true,
		CreatedAt:    now,
		AcceptedAt:   &now,
		Result:       result,
	}, nil
}

// Accept escrows both stakes and starts the duel
func (s *duelService) Accept(ctx context.Context, key string, actorID int64) (*models.DuelSession, error) {
	entry, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := &entry.session
	if session.State.IsTerminal() {
		return nil, alreadyResolved("duel %s is already over", key)
	}
	if session.OpponentID != actorID {
		return nil, unauthorized("only the challenged player can accept")
	}
	if session.State != models.DuelStatePending {
		return nil, wrongState("duel %s was already accepted", key)
	}

	now := s.clock.Now()
	if session.Expired(now) {
		session.State = models.DuelStateExpired
		s.forget(key)
		return nil, wrongState("the challenge has expired")
	}

	p, err := s.params.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters: %w", err)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	accounts, err := lockAccounts(ctx, uow, s.config.StartingBalance, session.ChallengerID, session.OpponentID)
	if err != nil {
		return nil, err
	}
	for _, id := range []int64{session.ChallengerID, session.OpponentID} {
		if accounts[id].Balance < session.Bet {
			session.State = models.DuelStateDeclined
			s.forget(key)
			return nil, insufficientFunds(accounts[id].Balance, session.Bet)
		}
	}

	for _, id := range []int64{session.ChallengerID, session.OpponentID} {
		if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
			DiscordID:   id,
			Delta:       -session.Bet,
			Type:        models.TransactionTypeDuelEscrow,
			RelatedType: models.RelatedTypeDuel,
			Metadata:    map[string]any{"duel": key},
		}); err != nil {
			return nil, err
		}
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// From here until settlement the escrow exists only as this in-memory session.
	// A process crash in between loses both stakes.
	session.State = models.DuelStateActive
	session.Escrowed = true
	session.AcceptedAt = &now
	session.Deadline = now.Add(time.Duration(p.Int("pvp_timeout")) * time.Second)

	if session.Type == models.DuelTypeBlackjack {
		session.Seed = now.UnixNano()
		session.ChallengerHand, session.OpponentHand = dealDuelHands(session.Seed)
	}

	log.WithFields(log.Fields{
		"key": key,
		"bet": session.Bet,
	}).Info("Duel accepted")

	return snapshot(session), nil
}

// Decline discards a pending challenge. The challenger may withdraw it the same way.
func (s *duelService) Decline(ctx context.Context, key string, actorID int64) (*models.DuelSession, error) {
	entry, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := &entry.session
	if session.State.IsTerminal() {
		return nil, alreadyResolved("duel %s is already over", key)
	}
	if !session.IsParticipant(actorID) {
		return nil, unauthorized("you are not part of this duel")
	}
	if session.State != models.DuelStatePending {
		return nil, wrongState("duel %s has already started", key)
	}

	session.State = models.DuelStateDeclined
	s.forget(key)

	log.WithFields(log.Fields{
		"key":     key,
		"actorID": actorID,
	}).Info("Duel declined")

	return snapshot(session), nil
}

// SubmitMove records a move and resolves once both sides are done
func (s *duelService) SubmitMove(ctx context.Context, key string, actorID int64, move models.DuelMove) (*models.DuelSession, error) {
	entry, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := &entry.session
	if session.State.IsTerminal() {
		return nil, alreadyResolved("duel %s is already over", key)
	}
	if !session.IsParticipant(actorID) {
		return nil, unauthorized("you are not part of this duel")
	}
	if session.State != models.DuelStateActive {
		return nil, wrongState("duel %s has not been accepted", key)
	}
	if !session.Type.Allows(move) {
		return nil, validationError("%s is not a valid move for %s", move, session.Type)
	}

	isChallenger := actorID == session.ChallengerID
	ready := false

	switch session.Type {
	case models.DuelTypeRPS, models.DuelTypeQuickAction:
		slot := &session.OpponentMove
		if isChallenger {
			slot = &session.ChallengerMove
		}
		if *slot != nil {
			return nil, wrongState("you already played")
		}
		m := move
		*slot = &m
		ready = session.ChallengerMove != nil && session.OpponentMove != nil
	case models.DuelTypeBlackjack:
		hand, done := &session.OpponentHand, &session.OpponentDone
		if isChallenger {
			hand, done = &session.ChallengerHand, &session.ChallengerDone
		}
		if *done {
			return nil, wrongState("your hand is finished")
		}
		if move == models.MoveHit {
			*hand = append(*hand, drawDuelCard(session.Seed, actorID, len(*hand)))
			if models.IsBust(*hand) {
				*done = true
			}
		} else {
			*done = true
		}
		ready = session.ChallengerDone && session.OpponentDone
	}

	if ready {
		if err := s.settleLocked(ctx, session, false); err != nil {
			return nil, err
		}
	}

	return snapshot(session), nil
}

// Expire times out a session: a pending challenge is discarded, an active duel is settled
// with missing moves counting as losses and unfinished hands standing
func (s *duelService) Expire(ctx context.Context, key string) (*models.DuelSession, error) {
	entry, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := &entry.session
	if session.State.IsTerminal() {
		return nil, alreadyResolved("duel %s is already over", key)
	}

	if session.State == models.DuelStatePending {
		session.State = models.DuelStateExpired
		s.forget(key)
		log.WithField("key", key).Info("Duel challenge expired")
		return snapshot(session), nil
	}

	if session.Type == models.DuelTypeBlackjack {
		session.ChallengerDone = true
		session.OpponentDone = true
	}
	if err := s.settleLocked(ctx, session, true); err != nil {
		return nil, err
	}
	return snapshot(session), nil
}

// SweepExpired expires every session past its deadline
func (s *duelService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	entries := make(map[string]*duelEntry, len(s.sessions))
	for key, entry := range s.sessions {
		entries[key] = entry
	}
	s.mu.RUnlock()

	var due []string
	for key, entry := range entries {
		entry.mu.Lock()
		if entry.session.Expired(now) {
			due = append(due, key)
		}
		entry.mu.Unlock()
	}
	sort.Strings(due)

	expired := 0
	var errs []error
	for _, key := range due {
		if _, err := s.Expire(ctx, key); err != nil {
			if errors.Is(err, ErrAlreadyResolved) || errors.Is(err, ErrNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.WithField("count", expired).Info("Expired duels swept")
	}
	return expired, errors.Join(errs...)
}

// settleLocked pays out a finished duel. The caller holds the session lock.
// The session is only marked resolved once the payout is committed, so a failed
// settlement can be retried.
func (s *duelService) settleLocked(ctx context.Context, session *models.DuelSession, timedOut bool) error {
	p, err := s.params.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load parameters: %w", err)
	}

	var side duelSide
	result := &models.DuelResult{Pot: session.Pot(), TimedOut: timedOut}

	switch session.Type {
	case models.DuelTypeRPS, models.DuelTypeQuickAction:
		side = compareThrows(session.ChallengerMove, session.OpponentMove)
	case models.DuelTypeBlackjack:
		side = compareHands(session.ChallengerHand, session.OpponentHand)
		result.ChallengerScore = models.HandValue(session.ChallengerHand)
		result.OpponentScore = models.HandValue(session.OpponentHand)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	metadata := map[string]any{"duel": session.Key}
	accounts := uow.AccountRepository()

	if side == sideTie {
		result.Tie = true
		for _, id := range []int64{session.ChallengerID, session.OpponentID} {
			if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
				DiscordID:   id,
				Delta:       session.Bet,
				Type:        models.TransactionTypeDuelRefund,
				RelatedType: models.RelatedTypeDuel,
				Metadata:    metadata,
			}); err != nil {
				return err
			}
			if err := accounts.IncrementPvPStats(ctx, id, models.PvPStatsDelta{Games: 1}); err != nil {
				return fmt.Errorf("failed to record pvp stats: %w", err)
			}
		}
	} else {
		winnerID, loserID := session.ChallengerID, session.OpponentID
		if side == sideOpponent {
			winnerID, loserID = loserID, winnerID
		}
		gain, tax := applyPotTax(session.Pot(), p.Float(duelTaxParam(session.Type)))
		result.WinnerID = &winnerID
		result.LoserID = &loserID
		result.WinnerGain = gain
		result.Tax = tax

		if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
			DiscordID:   winnerID,
			Delta:       gain,
			Type:        models.TransactionTypeDuelWin,
			RelatedType: models.RelatedTypeDuel,
			Metadata:    map[string]any{"duel": session.Key, "tax": tax},
		}); err != nil {
			return err
		}
		if err := accounts.IncrementPvPStats(ctx, winnerID, models.PvPStatsDelta{Games: 1, Wins: 1, Profit: gain - session.Bet}); err != nil {
			return fmt.Errorf("failed to record pvp stats: %w", err)
		}
		if err := accounts.IncrementPvPStats(ctx, loserID, models.PvPStatsDelta{Games: 1, Losses: 1, Profit: -session.Bet}); err != nil {
			return fmt.Errorf("failed to record pvp stats: %w", err)
		}
	}

	uow.EventBus().Publish(events.DuelResolvedEvent{
		SessionKey:   session.Key,
		DuelType:     session.Type,
		ChallengerID: session.ChallengerID,
		OpponentID:   session.OpponentID,
		Bet:          session.Bet,
		Tie:          result.Tie,
		WinnerID:     result.WinnerID,
		WinnerGain:   result.WinnerGain,
		Tax:          result.Tax,
		TimedOut:     timedOut,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	session.State = models.DuelStateResolved
	session.Result = result
	s.forget(session.Key)

	log.WithFields(log.Fields{
		"key":      session.Key,
		"tie":      result.Tie,
		"winnerID": result.WinnerID,
		"gain":     result.WinnerGain,
		"tax":      result.Tax,
		"timedOut": timedOut,
	}).Info("Duel resolved")

	ctx = context.WithoutCancel(ctx)
	s.creditDuelProgress(ctx, session.ChallengerID, side == sideChallenger, side == sideTie)
	s.creditDuelProgress(ctx, session.OpponentID, side == sideOpponent, side == sideTie)

	return nil
}

func (s *duelService) creditDuelProgress(ctx context.Context, discordID int64, won, tie bool) {
	if s.progress == nil {
		return
	}
	xp := s.config.XPPerPvPGame
	switch {
	case tie:
	case won:
		xp += s.config.XPBonusPvPWin
	default:
		xp += s.config.XPBonusPvPLoss
	}
	s.progress.CreditProgress(ctx, discordID, ProgressKindPvP, xp)
}

// Get returns a snapshot of a live session
func (s *duelService) Get(key string) (*models.DuelSession, error) {
	entry, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return snapshot(&entry.session), nil
}

// ListForUser returns the live sessions a user takes part in, oldest first
func (s *duelService) ListForUser(discordID int64) []*models.DuelSession {
	s.mu.RLock()
	entries := make([]*duelEntry, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	var out []*models.DuelSession
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.session.IsParticipant(discordID) {
			out = append(out, snapshot(&entry.session))
		}
		entry.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
