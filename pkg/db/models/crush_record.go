package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crushlink-backend/pkg/enums"
)

// CrushRecord is one submission declaring interest in another identity.
// Everything except Status and MatchedAt is immutable after insert.
type CrushRecord struct {
	ID                   uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	RequesterID          string            `gorm:"column:requester_id;not null"`
	RequesterContact     string            `gorm:"column:requester_contact;not null"`
	RequesterDisplayName string            `gorm:"column:requester_display_name;not null"`
	TargetID             string            `gorm:"column:target_id;not null"`
	TargetDisplayName    string            `gorm:"column:target_display_name;not null"`
	Status               enums.CrushStatus `gorm:"column:status;not null;default:pending"`
	CreatedAt            time.Time         `gorm:"column:created_at;not null"`
	MatchedAt            *time.Time        `gorm:"column:matched_at"`
}

func (CrushRecord) TableName() string {
	return "crushes"
}

// IsReciprocalOf reports whether r names other's requester as its target and vice versa.
func (r CrushRecord) IsReciprocalOf(other CrushRecord) bool {
	return r.RequesterID == other.TargetID && r.TargetID == other.RequesterID
}
