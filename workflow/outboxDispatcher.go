package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxPublishBackoff = 10 * time.Minute

// EventSink delivers one batch event and returns the broker message id.
type EventSink func(ctx context.Context, msg config.BatchEventMessage) (string, error)

// OutboxDispatcher publishes committed BatchEventRecords in id order.
// Several instances may run at once; rows are claimed with SKIP LOCKED.
// Within one batch a row is only sent once every earlier row of the batch is
// SENT or DEAD, so a failed publish holds back the rest of its batch.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Sink         EventSink
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger, sink EventSink) *OutboxDispatcher {
	if sink == nil {
		sink = config.PublishBatchEventWithResult
	}
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		Sink:           sink,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB
	if db == nil {
		db = config.GetDB()
	}
	if db == nil {
		return
	}

	var claimed []models.BatchEventRecord
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// ready PENDING/FAILED rows, or PROCESSING rows whose claim went stale
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		var candidates []models.BatchEventRecord
		if err := q.Find(&candidates).Error; err != nil {
			return err
		}
		for i := range candidates {
			if d.MaxAttempts > 0 && candidates[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				if err := tx.Model(&models.BatchEventRecord{}).Where("id = ?", candidates[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}
			claimed = append(claimed, candidates[i])
		}
		if len(claimed) == 0 {
			return nil
		}

		// rows still waiting behind an earlier unsent event of their batch stay queued
		batchIds := make([]int, 0, len(claimed))
		for _, rec := range claimed {
			batchIds = append(batchIds, rec.TransactionBatchId)
		}
		var unsent []models.BatchEventRecord
		if err := tx.Model(&models.BatchEventRecord{}).
			Select("id", "transaction_batch_id").
			Where("transaction_batch_id IN ? AND publish_status NOT IN ?", utils.UniqueSlice(batchIds),
				[]string{models.OutboxPublishStatusSent, models.OutboxPublishStatusDead}).
			Order("id ASC").
			Find(&unsent).Error; err != nil {
			return err
		}
		claimed = inBatchOrder(claimed, unsent)

		for i := range claimed {
			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts++
			claimed[i].LastPublishError = nil
			if err := tx.Model(&models.BatchEventRecord{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     claimed[i].PublishStatus,
				"locked_at":          claimed[i].LockedAt,
				"locked_by":          claimed[i].LockedBy,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "dispatchOnce", "claim batch events", d.DispatcherID, err)
		return
	}

	for _, res := range publishInBatchOrder(ctx, claimed, d.Sink) {
		switch {
		case res.Held:
			d.releaseClaim(ctx, db, res.Record)
		case res.Err != nil:
			d.markPublishFailed(ctx, db, res.Record, res.Err)
		default:
			d.markPublishSent(ctx, db, res.Record.ID, res.MessageId, now)
		}
	}
}

type publishResult struct {
	Record    models.BatchEventRecord
	MessageId string
	Err       error
	// Held rows were not sent because an earlier row of their batch failed.
	Held bool
}

// publishInBatchOrder sends claimed rows in order. After a batch's first
// failure its remaining rows are held rather than sent.
func publishInBatchOrder(ctx context.Context, claimed []models.BatchEventRecord, sink EventSink) []publishResult {
	results := make([]publishResult, 0, len(claimed))
	failedBatches := map[int]bool{}
	for _, rec := range claimed {
		if failedBatches[rec.TransactionBatchId] {
			results = append(results, publishResult{Record: rec, Held: true})
			continue
		}
		pubID, err := sink(ctx, rec.ToMessage())
		if err != nil {
			failedBatches[rec.TransactionBatchId] = true
		}
		results = append(results, publishResult{Record: rec, MessageId: pubID, Err: err})
	}
	return results
}

// inBatchOrder keeps, per batch, the leading run of claimed rows that follows
// the batch's unsent rows in id order. A claimed row behind an unsent row it
// did not claim (backing off, or claimed elsewhere) waits for a later poll.
// unsent holds every PENDING, PROCESSING or FAILED row of the claimed batches.
func inBatchOrder(claimed, unsent []models.BatchEventRecord) []models.BatchEventRecord {
	isClaimed := make(map[int]bool, len(claimed))
	for _, rec := range claimed {
		isClaimed[rec.ID] = true
	}
	// first unsent row per batch that this poll did not claim
	blockedFrom := map[int]int{}
	for _, rec := range unsent {
		if isClaimed[rec.ID] {
			continue
		}
		if _, ok := blockedFrom[rec.TransactionBatchId]; !ok {
			blockedFrom[rec.TransactionBatchId] = rec.ID
		}
	}
	out := make([]models.BatchEventRecord, 0, len(claimed))
	for _, rec := range claimed {
		if first, ok := blockedFrom[rec.TransactionBatchId]; ok && rec.ID > first {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// releaseClaim hands a row back unsent without counting the attempt.
func (d *OutboxDispatcher) releaseClaim(ctx context.Context, db *gorm.DB, rec models.BatchEventRecord) {
	if err := db.WithContext(ctx).Model(&models.BatchEventRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":   models.OutboxPublishStatusPending,
			"publish_attempts": gorm.Expr("publish_attempts - 1"),
			"locked_at":        nil,
			"locked_by":        nil,
		}).Error; err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "releaseClaim", "update record", rec.ID, err)
	}
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, db *gorm.DB, recordID int, pubsubMsgID string, now time.Time) {
	id := pubsubMsgID
	if err := db.WithContext(ctx).Model(&models.BatchEventRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       &now,
			"pub_sub_message_id": &id,
			"locked_at":          nil,
			"locked_by":          nil,
			"next_attempt_at":    nil,
		}).Error; err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "markPublishSent", "update record", recordID, err)
	}
}

// publishBackoff doubles from initial per attempt, capped at ten minutes.
func publishBackoff(initial time.Duration, attempt int) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > maxPublishBackoff {
			return maxPublishBackoff
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, db *gorm.DB, rec models.BatchEventRecord, err error) {
	now := time.Now().UTC()
	msg := err.Error()
	fields := logrus.Fields{
		"field":     "OutboxDispatcher",
		"branch_id": rec.BranchId,
		"batch_id":  rec.TransactionBatchId,
		"topic":     rec.Topic,
		"record_id": rec.ID,
		"attempt":   rec.PublishAttempts,
	}

	if d.MaxAttempts > 0 && rec.PublishAttempts >= d.MaxAttempts {
		_ = db.WithContext(ctx).Model(&models.BatchEventRecord{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error
		if d.Logger != nil {
			d.Logger.WithFields(fields).Error("batch event moved to DEAD after max attempts: " + msg)
		}
		return
	}

	next := now.Add(publishBackoff(d.InitialBackoff, rec.PublishAttempts))
	_ = db.WithContext(ctx).Model(&models.BatchEventRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error
	if d.Logger != nil {
		fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
		d.Logger.WithFields(fields).Error("batch event publish failed: " + msg)
	}
}

// Replay puts a DEAD or FAILED record of the branch back in the queue.
func (d *OutboxDispatcher) Replay(ctx context.Context, branchId, recordId int) error {
	db := d.DB
	if db == nil {
		db = config.GetDB()
	}
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&models.BatchEventRecord{}).
		Where("id = ? AND branch_id = ? AND publish_status IN ?", recordId, branchId,
			[]string{models.OutboxPublishStatusDead, models.OutboxPublishStatusFailed}).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"publish_attempts":   0,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &models.NotFoundError{Resource: "BatchEventRecord", ID: recordId}
	}
	return nil
}
