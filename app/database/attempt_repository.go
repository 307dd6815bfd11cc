package database

import (
	"fmt"

	"github.com/google/uuid"
)

// AttemptRepo handles database operations for publish attempts.
type AttemptRepo struct {
	db *DB
}

var _ AttemptRepository = (*AttemptRepo)(nil)

func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

func (r *AttemptRepo) RecordAttempt(a PublishAttempt) error {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := r.db.Exec(`
		INSERT INTO publish_attempts (
			id, rule_name, sku, channel_type, channel_target,
			success, external_message_id, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, a.RuleName, a.SKU, a.ChannelType, a.ChannelTarget,
		a.Success, a.ExternalMessageID, a.Error)
	if err != nil {
		return fmt.Errorf("failed to record publish attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepo) GetAttemptStats() (total, succeeded, failed int, err error) {
	err = r.db.QueryRow(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS succeeded,
			COALESCE(SUM(CASE WHEN NOT success THEN 1 ELSE 0 END), 0) AS failed
		FROM publish_attempts
	`).Scan(&total, &succeeded, &failed)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get attempt stats: %w", err)
	}
	return total, succeeded, failed, nil
}
