package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/crushlink-backend/pkg/db/types"
	"github.com/angelmondragon/crushlink-backend/pkg/enums"
)

// OutboxDLQ captures terminal outbox failures for auditing and remediation.
type OutboxDLQ struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	EventID       uuid.UUID                  `gorm:"column:event_id;type:uuid;not null"`
	EventType     enums.OutboxEventType      `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType  `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                  `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       dbtypes.RawJSON            `gorm:"column:payload_json;type:text;not null"`
	ErrorReason   enums.OutboxDLQErrorReason `gorm:"column:error_reason;not null"`
	ErrorMessage  *string                    `gorm:"column:error_message"`
	AttemptCount  int                        `gorm:"column:attempt_count;not null;default:0"`
	FailedAt      time.Time                  `gorm:"column:failed_at;not null"`
	CreatedAt     time.Time                  `gorm:"column:created_at;not null"`
}

func (OutboxDLQ) TableName() string {
	return "outbox_dlq"
}
