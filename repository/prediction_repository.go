package repository

import (
	"context"
	"errors"
	"fmt"

	"kzcasino/database"
	"kzcasino/models"

	"github.com/jackc/pgx/v5"
)

// PredictionRepository implements the PredictionRepository interface
type PredictionRepository struct {
	q queryable
}

// NewPredictionRepository creates a new prediction repository
func NewPredictionRepository(db *database.DB) *PredictionRepository {
	return &PredictionRepository{q: db.Pool}
}

// newPredictionRepositoryWithTx creates a new prediction repository with a transaction
func newPredictionRepositoryWithTx(tx queryable) *PredictionRepository {
	return &PredictionRepository{q: tx}
}

// Get returns the open prediction for a pair, or nil
func (r *PredictionRepository) Get(ctx context.Context, predictorID, targetID int64) (*models.Prediction, error) {
	var p models.Prediction
	err := r.q.QueryRow(ctx, `
		SELECT predictor_id, target_id, stake, choice, created_at
		FROM predictions
		WHERE predictor_id = $1 AND target_id = $2
	`, predictorID, targetID).Scan(&p.PredictorID, &p.TargetID, &p.Stake, &p.Choice, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction of %d on %d: %w", predictorID, targetID, err)
	}
	return &p, nil
}

// Upsert stores the prediction for the pair, replacing an existing one
func (r *PredictionRepository) Upsert(ctx context.Context, prediction *models.Prediction) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO predictions (predictor_id, target_id, stake, choice, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (predictor_id, target_id) DO UPDATE SET
			stake = EXCLUDED.stake,
			choice = EXCLUDED.choice,
			created_at = EXCLUDED.created_at
	`, prediction.PredictorID, prediction.TargetID, prediction.Stake, prediction.Choice, prediction.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store prediction of %d on %d: %w", prediction.PredictorID, prediction.TargetID, err)
	}
	return nil
}

// Delete removes the prediction for a pair
func (r *PredictionRepository) Delete(ctx context.Context, predictorID, targetID int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM predictions WHERE predictor_id = $1 AND target_id = $2`, predictorID, targetID)
	if err != nil {
		return false, fmt.Errorf("failed to delete prediction of %d on %d: %w", predictorID, targetID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByPredictor returns the open predictions placed by a user
func (r *PredictionRepository) GetByPredictor(ctx context.Context, predictorID int64) ([]*models.Prediction, error) {
	rows, err := r.q.Query(ctx, `
		SELECT predictor_id, target_id, stake, choice, created_at
		FROM predictions
		WHERE predictor_id = $1
		ORDER BY created_at, target_id
	`, predictorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions of %d: %w", predictorID, err)
	}
	return collectPredictions(rows)
}

// GetPredictorIDsByTarget returns who holds open predictions on a user, without locking
func (r *PredictionRepository) GetPredictorIDsByTarget(ctx context.Context, targetID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx, `
		SELECT predictor_id FROM predictions WHERE target_id = $1
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictors on %d: %w", targetID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan predictors on %d: %w", targetID, err)
	}
	return ids, nil
}

// GetByTarget returns the open predictions on a user in creation order
func (r *PredictionRepository) GetByTarget(ctx context.Context, targetID int64) ([]*models.Prediction, error) {
	rows, err := r.q.Query(ctx, `
		SELECT predictor_id, target_id, stake, choice, created_at
		FROM predictions
		WHERE target_id = $1
		ORDER BY created_at, predictor_id
		FOR UPDATE
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions on %d: %w", targetID, err)
	}
	return collectPredictions(rows)
}

// DeleteByTarget removes every open prediction on a user
func (r *PredictionRepository) DeleteByTarget(ctx context.Context, targetID int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM predictions WHERE target_id = $1`, targetID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete predictions on %d: %w", targetID, err)
	}
	return tag.RowsAffected(), nil
}

// CreateLog appends a resolved prediction
func (r *PredictionRepository) CreateLog(ctx context.Context, entry *models.PredictionLog) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO prediction_logs
		(predictor_id, target_id, stake, choice, result, correct, paid_from_target, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		entry.PredictorID,
		entry.TargetID,
		entry.Stake,
		entry.Choice,
		entry.Result,
		entry.Correct,
		entry.PaidFromTarget,
		entry.CreatedAt,
		entry.ResolvedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to log prediction of %d on %d: %w", entry.PredictorID, entry.TargetID, err)
	}
	return nil
}

// GetLogsByUser returns resolved predictions where the user was predictor or target
func (r *PredictionRepository) GetLogsByUser(ctx context.Context, discordID int64, limit int) ([]*models.PredictionLog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, predictor_id, target_id, stake, choice, result, correct, paid_from_target, created_at, resolved_at
		FROM prediction_logs
		WHERE predictor_id = $1 OR target_id = $1
		ORDER BY resolved_at DESC, id DESC
		LIMIT $2
	`, discordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction logs of %d: %w", discordID, err)
	}
	defer rows.Close()

	var logs []*models.PredictionLog
	for rows.Next() {
		var l models.PredictionLog
		err := rows.Scan(&l.ID, &l.PredictorID, &l.TargetID, &l.Stake, &l.Choice, &l.Result,
			&l.Correct, &l.PaidFromTarget, &l.CreatedAt, &l.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prediction logs: %w", err)
	}

	return logs, nil
}

func collectPredictions(rows pgx.Rows) ([]*models.Prediction, error) {
	defer rows.Close()

	var predictions []*models.Prediction
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(&p.PredictorID, &p.TargetID, &p.Stake, &p.Choice, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}

	return predictions, nil
}
