package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/crushlink-backend/pkg/db/types"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
)

// OutboxEvent represents an append-only event emitted via the outbox pattern.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       dbtypes.RawJSON           `gorm:"column:payload;type:text;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;not null"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
