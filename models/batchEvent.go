package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/utils"
	"gorm.io/datatypes"
)

// Outbox publish statuses for BatchEventRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// BatchEventRecord is the transactional outbox row of one realtime event.
// It is written with the change it describes and published after commit.
type BatchEventRecord struct {
	ID                 int            `gorm:"primary_key;index:idx_batch_event_dispatch,priority:3" json:"id"`
	BranchId           int            `gorm:"index;not null" json:"branch_id"`
	TransactionBatchId int            `gorm:"index;not null" json:"transaction_batch_id"`
	Topic              string         `gorm:"size:255;not null" json:"topic"`
	Entity             EventEntity    `gorm:"size:50;not null" json:"entity"`
	Action             EventAction    `gorm:"type:enum('create','update','delete');not null" json:"action"`
	Payload            datatypes.JSON `json:"payload"`
	CorrelationId      string         `gorm:"size:64;index" json:"correlation_id"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_batch_event_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_batch_event_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewBatchEventRecord builds a pending outbox row for obj.
func NewBatchEventRecord(ctx context.Context, branchId int, batchId int, entity EventEntity, action EventAction, obj interface{}) (*BatchEventRecord, error) {
	payload, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return &BatchEventRecord{
		BranchId:           branchId,
		TransactionBatchId: batchId,
		Topic:              BatchTopic(entity, batchId, action),
		Entity:             entity,
		Action:             action,
		Payload:            datatypes.JSON(payload),
		CorrelationId:      correlationIdFromContextOrNew(ctx),
		PublishStatus:      OutboxPublishStatusPending,
	}, nil
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func (r BatchEventRecord) ToMessage() config.BatchEventMessage {
	return config.BatchEventMessage{
		ID:            r.ID,
		Topic:         r.Topic,
		BranchId:      r.BranchId,
		BatchId:       r.TransactionBatchId,
		Entity:        string(r.Entity),
		Action:        string(r.Action),
		Payload:       json.RawMessage(r.Payload),
		CorrelationId: r.CorrelationId,
		OccurredAt:    r.CreatedAt,
	}
}
