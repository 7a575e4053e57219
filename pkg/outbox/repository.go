package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/crushlink-backend/pkg/db/models"
)

const maxLastErrorLen = 1024

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish locks up to limit unpublished rows that still have
// attempts left. Concurrent publishers skip rows another publisher holds.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	query := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		query = query.Where("attempt_count < ?", maxAttempts)
	}
	var rows []models.OutboxEvent
	err := query.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": time.Now().UTC(),
			"last_error":   nil,
		}).Error
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    truncateError(err),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkTerminalTx stops further publish attempts for a row that moved to the DLQ.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at":  time.Now().UTC(),
			"last_error":    truncateError(err),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// DeletePublishedBefore removes published rows older than cutoff, returning the count.
func (r *Repository) DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff.UTC()).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxLastErrorLen {
		return msg[:maxLastErrorLen]
	}
	return msg
}
