package batchapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/middlewares"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/realtime"
	"github.com/mmdatafocus/teller_backend/workflow"
	"github.com/sirupsen/logrus"
)

// Handler serves the teller batch HTTP API.
type Handler struct {
	Workflow *workflow.BatchWorkflow
	Catalog  models.DenominationCatalog
	Lookup   ReferenceLookup
	Hub      *realtime.Hub
	Bridge   *realtime.Bridge
	Logger   *logrus.Logger
}

func NewHandler(w *workflow.BatchWorkflow, hub *realtime.Hub, logger *logrus.Logger) *Handler {
	return &Handler{
		Workflow: w,
		Catalog:  w.Catalog,
		Lookup:   LoaderLookup{},
		Hub:      hub,
		Bridge:   &realtime.Bridge{Hub: hub, Logger: logger},
		Logger:   logger,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	if h.Bridge != nil {
		r.POST("/pubsub/batch-events", h.pushBatchEvent)
	}

	api := r.Group("/api", middlewares.RequireSession())
	api.GET("/denominations", h.listDenominations)
	api.POST("/sessions/logout", h.logout)

	batches := api.Group("/transaction-batches")
	batches.POST("", h.openBatch)
	batches.GET("", h.listBatches)
	batches.GET("/current", h.currentBatch)
	batches.POST("/current/request-view", h.requestView)
	batches.POST("/current/end", h.endBatch)
	batches.GET("/:id", h.getBatch)
	batches.GET("/:id/blotter", h.getBlotter)
	batches.GET("/:id/live", h.liveBatch)
	batches.POST("/:id/approve-view", h.approveView)
	batches.POST("/:id/deny-view", h.denyView)
	batches.PUT("/:id/deposit-in-bank", h.setDepositInBank)
	batches.PUT("/:id/collections", h.recordCollections)
	batches.POST("/:id/recompute", h.recomputeTotals)

	batches.GET("/:id/cash-counts", h.getCashCounts)
	batches.PUT("/:id/cash-counts", h.saveCashCounts)

	batches.GET("/:id/check-remittances", h.listCheckRemittances)
	batches.POST("/:id/check-remittances", h.createCheckRemittance)
	batches.PUT("/:id/check-remittances/:rid", h.updateCheckRemittance)
	batches.DELETE("/:id/check-remittances/:rid", h.deleteCheckRemittance)

	batches.GET("/:id/online-remittances", h.listOnlineRemittances)
	batches.POST("/:id/online-remittances", h.createOnlineRemittance)
	batches.PUT("/:id/online-remittances/:rid", h.updateOnlineRemittance)
	batches.DELETE("/:id/online-remittances/:rid", h.deleteOnlineRemittance)

	batches.GET("/:id/disbursements", h.listDisbursements)
	batches.POST("/:id/disbursements", h.createDisbursement)
	batches.DELETE("/:id/disbursements/:did", h.deleteDisbursement)
}

func actorOf(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := workflow.ActorFromContext(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return actor, ok
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, models.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func bindBody(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, models.NewValidationError("body", "is not valid JSON: "+err.Error()))
		return false
	}
	return true
}

func pageQuery(c *gin.Context) (models.PageQuery, bool) {
	var q models.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, models.NewValidationError("page", "must be a number"))
		return q, false
	}
	return q, true
}

// PageResponse mirrors models.PaginatedResult with enriched rows.
type PageResponse[T any] struct {
	Data      []T   `json:"data"`
	TotalSize int64 `json:"totalSize"`
	TotalPage int   `json:"totalPage"`
	PageSize  int   `json:"pageSize"`
}

func mapPage[S any, T any](page *models.PaginatedResult[S], fn func(*S) T) PageResponse[T] {
	out := PageResponse[T]{
		Data:      make([]T, 0, len(page.Data)),
		TotalSize: page.TotalSize,
		TotalPage: page.TotalPage,
		PageSize:  page.PageSize,
	}
	for _, item := range page.Data {
		out.Data = append(out.Data, fn(item))
	}
	return out
}
