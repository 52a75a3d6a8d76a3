package realtime

import (
	"context"
	"encoding/json"

	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/shopspring/decimal"
)

// FeedSource performs the initial fetch of a batch feed.
type FeedSource interface {
	FetchChecks(ctx context.Context, batchId int) ([]*models.CheckRemittance, error)
	FetchOnlines(ctx context.Context, batchId int) ([]*models.OnlineRemittance, error)
	FetchDisbursements(ctx context.Context, batchId int) ([]*models.DisbursementTransaction, error)
}

// BatchFeed holds the live remittance and disbursement lists of one batch.
type BatchFeed struct {
	BatchId       int
	Checks        *models.LiveCollection[*models.CheckRemittance]
	Onlines       *models.LiveCollection[*models.OnlineRemittance]
	Disbursements *models.LiveCollection[*models.DisbursementTransaction]

	changes     chan struct{}
	unsubscribe []func()
}

// FeedTotals are the running sums shown next to the live lists.
type FeedTotals struct {
	TransactionBatchId int             `json:"transaction_batch_id"`
	Checks             decimal.Decimal `json:"checks"`
	Onlines            decimal.Decimal `json:"onlines"`
	Disbursements      decimal.Decimal `json:"disbursements"`
}

// NewBatchFeed subscribes to every create, update and delete topic of the
// batch's remittances and disbursements.
func NewBatchFeed(hub *Hub, batchId int) *BatchFeed {
	f := &BatchFeed{
		BatchId:       batchId,
		Checks:        models.NewLiveCollection[*models.CheckRemittance](),
		Onlines:       models.NewLiveCollection[*models.OnlineRemittance](),
		Disbursements: models.NewLiveCollection[*models.DisbursementTransaction](),
		changes:       make(chan struct{}, 1),
	}
	f.unsubscribe = append(f.unsubscribe, follow(hub, f, models.EventEntityCheckRemittance, f.Checks)...)
	f.unsubscribe = append(f.unsubscribe, follow(hub, f, models.EventEntityOnlineRemittance, f.Onlines)...)
	f.unsubscribe = append(f.unsubscribe, follow(hub, f, models.EventEntityDisbursement, f.Disbursements)...)
	return f
}

func follow[E any, P interface {
	*E
	models.Identifier
}](hub *Hub, f *BatchFeed, entity models.EventEntity, c *models.LiveCollection[P]) []func() {
	actions := []models.EventAction{models.EventActionCreate, models.EventActionUpdate, models.EventActionDelete}
	unsubscribe := make([]func(), 0, len(actions))
	for _, action := range actions {
		action := action
		topic := models.BatchTopic(entity, f.BatchId, action)
		unsubscribe = append(unsubscribe, hub.Subscribe(topic, func(ctx context.Context, msg config.BatchEventMessage) {
			var item E
			if err := json.Unmarshal(msg.Payload, &item); err != nil {
				config.LogError(hub.Logger, "batchFeed.go", "follow", "decode payload", msg.Topic, err)
				return
			}
			c.Apply(models.LiveEvent[P]{Action: action, Item: P(&item)})
			f.notify()
		}))
	}
	return unsubscribe
}

func (f *BatchFeed) notify() {
	select {
	case f.changes <- struct{}{}:
	default:
	}
}

// Changes signals after any list changed. Signals coalesce.
func (f *BatchFeed) Changes() <-chan struct{} {
	return f.changes
}

// Refresh refetches all three lists. Events arriving during the fetch are
// replayed over its result.
func (f *BatchFeed) Refresh(ctx context.Context, src FeedSource) error {
	checkGen := f.Checks.StartFetch()
	onlineGen := f.Onlines.StartFetch()
	disbGen := f.Disbursements.StartFetch()
	abort := func() {
		f.Checks.AbortFetch(checkGen)
		f.Onlines.AbortFetch(onlineGen)
		f.Disbursements.AbortFetch(disbGen)
	}

	checks, err := src.FetchChecks(ctx, f.BatchId)
	if err != nil {
		abort()
		return err
	}
	onlines, err := src.FetchOnlines(ctx, f.BatchId)
	if err != nil {
		abort()
		return err
	}
	disbursements, err := src.FetchDisbursements(ctx, f.BatchId)
	if err != nil {
		abort()
		return err
	}
	f.Checks.CompleteFetch(checkGen, checks)
	f.Onlines.CompleteFetch(onlineGen, onlines)
	f.Disbursements.CompleteFetch(disbGen, disbursements)
	f.notify()
	return nil
}

func (f *BatchFeed) Totals() FeedTotals {
	return FeedTotals{
		TransactionBatchId: f.BatchId,
		Checks:             models.ComputeRemittanceTotal(f.Checks.Items()),
		Onlines:            models.ComputeRemittanceTotal(f.Onlines.Items()),
		Disbursements:      models.ComputeDisbursementTotal(f.Disbursements.Items()),
	}
}

// Close drops every subscription. The lists keep their last state.
func (f *BatchFeed) Close() {
	for _, unsubscribe := range f.unsubscribe {
		unsubscribe()
	}
	f.unsubscribe = nil
}
