package service

import (
	"context"
	"fmt"

	"kzcasino/config"
	"kzcasino/events"
	"kzcasino/models"

	log "github.com/sirupsen/logrus"
)

type predictionService struct {
	uowFactory UnitOfWorkFactory
	clock      Clock
	config     *config.Config
}

// NewPredictionService creates a new prediction market service
func NewPredictionService(uowFactory UnitOfWorkFactory, clock Clock, cfg *config.Config) PredictionService {
	return &predictionService{
		uowFactory: uowFactory,
		clock:      clock,
		config:     cfg,
	}
}

// Place opens or replaces a prediction on a target's next outcome
func (s *predictionService) Place(ctx context.Context, predictorID, targetID int64, stake int64, choice models.PredictionChoice) (*models.Prediction, error) {
	if _, err := models.ParsePredictionChoice(string(choice)); err != nil {
		return nil, validationError("choice must be win or lose")
	}
	if predictorID == targetID {
		return nil, validationError("you cannot predict on yourself")
	}
	if s.config.IsHouse(targetID) {
		return nil, validationError("you cannot predict on the house")
	}
	if stake <= 0 {
		return nil, validationError("stake must be positive")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	predictor, err := lockAccount(ctx, uow, predictorID, s.config.StartingBalance)
	if err != nil {
		return nil, err
	}
	if err := ensureAccount(ctx, uow, targetID, s.config.StartingBalance); err != nil {
		return nil, err
	}
	balance := predictor.Balance

	// Replace semantics: refund the open prediction on this pair first.
	// If the new stake is unaffordable the rollback restores it.
	existing, err := uow.PredictionRepository().Get(ctx, predictorID, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	if existing != nil {
		deleted, err := uow.PredictionRepository().Delete(ctx, predictorID, targetID)
		if err != nil {
			return nil, fmt.Errorf("failed to delete prediction: %w", err)
		}
		if !deleted {
			// Resolved after the read; its stake has already been settled
			return nil, notFound("prediction on %d was resolved before it could be replaced", targetID)
		}
		change, err := applyLedgerEntry(ctx, uow, ledgerEntry{
			DiscordID:   predictorID,
			Delta:       existing.Stake,
			Type:        models.TransactionTypePredictionRefund,
			RelatedID:   &targetID,
			RelatedType: models.RelatedTypePrediction,
			Metadata:    map[string]any{"target_id": targetID, "replaced": true},
		})
		if err != nil {
			return nil, err
		}
		balance = change.After
	}

	if balance < stake {
		return nil, insufficientFunds(balance, stake)
	}

	if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID:   predictorID,
		Delta:       -stake,
		Type:        models.TransactionTypePredictionStake,
		RelatedID:   &targetID,
		RelatedType: models.RelatedTypePrediction,
		Metadata:    map[string]any{"target_id": targetID, "choice": string(choice)},
	}); err != nil {
		return nil, err
	}

	prediction := &models.Prediction{
		PredictorID: predictorID,
		TargetID:    targetID,
		Stake:       stake,
		Choice:      choice,
		CreatedAt:   s.clock.Now(),
	}
	if err := uow.PredictionRepository().Upsert(ctx, prediction); err != nil {
		return nil, fmt.Errorf("failed to store prediction: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"predictorID": predictorID,
		"targetID":    targetID,
		"stake":       stake,
		"choice":      choice,
		"replaced":    existing != nil,
	}).Info("Prediction placed")

	return prediction, nil
}

// Cancel removes an open prediction and refunds its stake
func (s *predictionService) Cancel(ctx context.Context, predictorID, targetID int64) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if _, err := lockAccount(ctx, uow, predictorID, s.config.StartingBalance); err != nil {
		return 0, err
	}

	existing, err := uow.PredictionRepository().Get(ctx, predictorID, targetID)
	if err != nil {
		return 0, fmt.Errorf("failed to get prediction: %w", err)
	}
	if existing == nil {
		return 0, notFound("nothing to cancel")
	}

	deleted, err := uow.PredictionRepository().Delete(ctx, predictorID, targetID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete prediction: %w", err)
	}
	if !deleted {
		// Resolved after the read; its stake has already been settled
		return 0, notFound("nothing to cancel")
	}
	if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
		DiscordID:   predictorID,
		Delta:       existing.Stake,
		Type:        models.TransactionTypePredictionRefund,
		RelatedID:   &targetID,
		RelatedType: models.RelatedTypePrediction,
		Metadata:    map[string]any{"target_id": targetID, "cancelled": true},
	}); err != nil {
		return 0, err
	}

	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return existing.Stake, nil
}

// OnOutcomeRecorded resolves predictions once a game result has been committed
func (s *predictionService) OnOutcomeRecorded(ctx context.Context, record models.OutcomeRecord) error {
	_, err := s.Resolve(ctx, record.AccountID, record.Result)
	return err
}

// Resolve settles every open prediction on the target against a result. The target's
// balance is read once; predictions are processed in creation order against a running
// balance so correct predictors are paid at most what the target holds.
func (s *predictionService) Resolve(ctx context.Context, targetID int64, result models.GameResult) (*models.PredictionResolution, error) {
	resolution := &models.PredictionResolution{TargetID: targetID, Result: result}
	if result != models.GameResultWin && result != models.GameResultLoss {
		return resolution, nil
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Account rows are locked before prediction rows, in ascending id order, the same
	// order Place and Cancel take them in
	predictorIDs, err := uow.PredictionRepository().GetPredictorIDsByTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictors on target: %w", err)
	}
	locked, err := lockExistingAccounts(ctx, uow, append(predictorIDs, targetID))
	if err != nil {
		return nil, err
	}
	target := locked[targetID]
	if target == nil {
		return resolution, nil
	}
	resolution.TargetBalance = target.Balance

	predictions, err := uow.PredictionRepository().GetByTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions on target: %w", err)
	}
	if len(predictions) == 0 {
		return resolution, nil
	}

	// Placed after the id read above
	var late []int64
	for _, p := range predictions {
		if _, ok := locked[p.PredictorID]; !ok {
			late = append(late, p.PredictorID)
		}
	}
	if _, err := lockExistingAccounts(ctx, uow, late); err != nil {
		return nil, err
	}

	running := target.Balance
	now := s.clock.Now()

	for _, p := range predictions {
		correct := p.Choice.Matches(result)
		related := targetID
		var paid int64

		if correct {
			if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
				DiscordID:   p.PredictorID,
				Delta:       p.Stake,
				Type:        models.TransactionTypePredictionRefund,
				RelatedID:   &related,
				RelatedType: models.RelatedTypePrediction,
				Metadata:    map[string]any{"target_id": targetID, "result": string(result)},
			}); err != nil {
				return nil, err
			}

			paid = min(p.Stake, running)
			if paid > 0 {
				if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
					DiscordID:   targetID,
					Delta:       -paid,
					Type:        models.TransactionTypePredictionPayout,
					RelatedID:   &p.PredictorID,
					RelatedType: models.RelatedTypePrediction,
					Metadata:    map[string]any{"predictor_id": p.PredictorID},
				}); err != nil {
					return nil, err
				}
				if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
					DiscordID:   p.PredictorID,
					Delta:       paid,
					Type:        models.TransactionTypePredictionWin,
					RelatedID:   &related,
					RelatedType: models.RelatedTypePrediction,
					Metadata:    map[string]any{"target_id": targetID},
				}); err != nil {
					return nil, err
				}
				running -= paid
			}
		} else {
			if _, err := applyLedgerEntry(ctx, uow, ledgerEntry{
				DiscordID:   targetID,
				Delta:       p.Stake,
				Type:        models.TransactionTypePredictionWin,
				RelatedID:   &p.PredictorID,
				RelatedType: models.RelatedTypePrediction,
				Metadata:    map[string]any{"predictor_id": p.PredictorID},
			}); err != nil {
				return nil, err
			}
			running += p.Stake
		}

		entry := &models.PredictionLog{
			PredictorID:    p.PredictorID,
			TargetID:       targetID,
			Stake:          p.Stake,
			Choice:         p.Choice,
			Result:         result,
			Correct:        correct,
			PaidFromTarget: paid,
			CreatedAt:      p.CreatedAt,
			ResolvedAt:     now,
		}
		if err := uow.PredictionRepository().CreateLog(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to record prediction log: %w", err)
		}
		resolution.Logs = append(resolution.Logs, entry)

		uow.EventBus().Publish(events.PredictionResolvedEvent{
			PredictorID:    p.PredictorID,
			TargetID:       targetID,
			Stake:          p.Stake,
			Choice:         p.Choice,
			Result:         result,
			Correct:        correct,
			PaidFromTarget: paid,
		})
	}

	if _, err := uow.PredictionRepository().DeleteByTarget(ctx, targetID); err != nil {
		return nil, fmt.Errorf("failed to clear predictions on target: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	resolution.TargetBalance = running

	log.WithFields(log.Fields{
		"targetID":    targetID,
		"result":      result,
		"predictions": len(resolution.Logs),
		"balance":     running,
	}).Info("Predictions resolved")

	return resolution, nil
}

// List returns the open predictions placed by a user
func (s *predictionService) List(ctx context.Context, predictorID int64) ([]*models.Prediction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	predictions, err := uow.PredictionRepository().GetByPredictor(ctx, predictorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions: %w", err)
	}
	return predictions, nil
}

// ListOnTarget returns the open predictions on a user
func (s *predictionService) ListOnTarget(ctx context.Context, targetID int64) ([]*models.Prediction, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	predictions, err := uow.PredictionRepository().GetByTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions on target: %w", err)
	}
	return predictions, nil
}

// Logs returns resolved predictions involving a user
func (s *predictionService) Logs(ctx context.Context, discordID int64, limit int) ([]*models.PredictionLog, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	logs, err := uow.PredictionRepository().GetLogsByUser(ctx, discordID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction logs: %w", err)
	}
	return logs, nil
}
