package repository

import (
	"context"
	"errors"
	"fmt"

	"kzcasino/database"

	"github.com/jackc/pgx/v5"
)

// SettingRepository implements the SettingRepository interface over the settings table
type SettingRepository struct {
	q queryable
}

// NewSettingRepository creates a new setting repository
func NewSettingRepository(db *database.DB) *SettingRepository {
	return &SettingRepository{q: db.Pool}
}

func newSettingRepositoryWithTx(tx queryable) *SettingRepository {
	return &SettingRepository{q: tx}
}

// Get returns the stored value, or nil when the key is absent
func (r *SettingRepository) Get(ctx context.Context, key string) (*string, error) {
	var value string
	err := r.q.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// GetByPrefix returns every key/value whose key starts with prefix
func (r *SettingRepository) GetByPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := r.q.Query(ctx, `SELECT key, value FROM settings WHERE starts_with(key, $1)`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings with prefix %s: %w", prefix, err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		values[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}

	return values, nil
}

// Set upserts a value
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// Delete removes a key and reports whether it existed
func (r *SettingRepository) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByPrefix removes every key starting with prefix
func (r *SettingRepository) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM settings WHERE starts_with(key, $1)`, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete settings with prefix %s: %w", prefix, err)
	}
	return tag.RowsAffected(), nil
}
