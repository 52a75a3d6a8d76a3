package batchapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/realtime"
	"github.com/mmdatafocus/teller_backend/workflow"
)

// repoFeedSource fetches a feed's lists straight from the repositories.
type repoFeedSource struct {
	repos workflow.Repositories
}

func (s repoFeedSource) FetchChecks(ctx context.Context, batchId int) ([]*models.CheckRemittance, error) {
	return s.repos.Checks.FindAll(ctx, models.Where("transaction_batch_id", batchId))
}

func (s repoFeedSource) FetchOnlines(ctx context.Context, batchId int) ([]*models.OnlineRemittance, error) {
	return s.repos.Onlines.FindAll(ctx, models.Where("transaction_batch_id", batchId))
}

func (s repoFeedSource) FetchDisbursements(ctx context.Context, batchId int) ([]*models.DisbursementTransaction, error) {
	return s.repos.Disbursements.FindAll(ctx, models.Where("transaction_batch_id", batchId))
}

type liveSnapshot struct {
	Totals        realtime.FeedTotals               `json:"totals"`
	Checks        []*models.CheckRemittance         `json:"check_remittances"`
	Onlines       []*models.OnlineRemittance        `json:"online_remittances"`
	Disbursements []*models.DisbursementTransaction `json:"disbursements"`
}

func snapshotOf(feed *realtime.BatchFeed) liveSnapshot {
	return liveSnapshot{
		Totals:        feed.Totals(),
		Checks:        feed.Checks.Items(),
		Onlines:       feed.Onlines.Items(),
		Disbursements: feed.Disbursements.Items(),
	}
}

// liveBatch streams the batch's remittances and disbursements as server-sent
// events, one "snapshot" event per change, until the client goes away.
func (h *Handler) liveBatch(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	if h.Hub == nil {
		respondError(c, models.AsCollaboratorError("live batch", errors.New("realtime hub is not running")))
		return
	}
	ctx := c.Request.Context()
	if _, err := h.Workflow.GetBatch(ctx, actor, id); err != nil {
		respondError(c, err)
		return
	}

	feed := realtime.NewBatchFeed(h.Hub, id)
	defer feed.Close()
	if err := feed.Refresh(ctx, repoFeedSource{repos: h.Workflow.Repos}); err != nil {
		respondError(c, models.AsCollaboratorError("live batch", err))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-feed.Changes():
			c.SSEvent("snapshot", snapshotOf(feed))
			return true
		}
	})
}
