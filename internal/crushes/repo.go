package crushes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/crushlink-backend/pkg/db"
	"github.com/angelmondragon/crushlink-backend/pkg/db/models"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
)

const pendingRequesterIndex = "ux_crushes_pending_requester"

// Repository persists crush records. Records are never deleted; the only
// mutation after insert is the conditional pending -> matched transition.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a crush repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository that runs every query on tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts record as pending. A concurrent pending record for the same
// requester surfaces as ErrPendingExists.
func (r *Repository) Create(ctx context.Context, record *models.CrushRecord) (*models.CrushRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.Status = enums.CrushStatusPending
	record.MatchedAt = nil

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsUniqueViolation(err, pendingRequesterIndex, "crushes.requester_id") {
			return nil, ErrPendingExists
		}
		return nil, err
	}
	return record, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CrushRecord, error) {
	var record models.CrushRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// FindPendingByRequester returns the requester's pending record, or nil.
func (r *Repository) FindPendingByRequester(ctx context.Context, requesterID string) (*models.CrushRecord, error) {
	var record models.CrushRecord
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", requesterID, enums.CrushStatusPending).
		Order("created_at ASC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// FindReciprocalPending returns the pending records whose requester is
// record's target and whose target is record's requester, earliest first.
func (r *Repository) FindReciprocalPending(ctx context.Context, record models.CrushRecord) ([]models.CrushRecord, error) {
	var rows []models.CrushRecord
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND target_id = ? AND status = ?", record.TargetID, record.RequesterID, enums.CrushStatusPending).
		Where("id <> ?", record.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// MarkMatchedIfPending moves one record to matched only if it is still
// pending. It reports whether this call performed the transition.
func (r *Repository) MarkMatchedIfPending(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CrushRecord{}).
		Where("id = ? AND status = ?", id, enums.CrushStatusPending).
		Updates(map[string]any{
			"status":     enums.CrushStatusMatched,
			"matched_at": at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListPendingBefore pages through pending records created before cutoff.
func (r *Repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CrushRecord, error) {
	var rows []models.CrushRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.CrushStatusPending, cutoff.UTC()).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
