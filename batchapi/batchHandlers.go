package batchapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/middlewares"
	"github.com/mmdatafocus/teller_backend/models"
)

// BatchResponse is a batch with its derived lifecycle state.
type BatchResponse struct {
	*models.TransactionBatch
	State        models.BatchState `json:"state"`
	EmployeeName string            `json:"employee_name,omitempty"`
}

func batchResponse(b *models.TransactionBatch) BatchResponse {
	return BatchResponse{TransactionBatch: b, State: models.BatchStateOf(b)}
}

type currentBatchResponse struct {
	State models.BatchState        `json:"state"`
	Batch *models.TransactionBatch `json:"batch"`
}

type confirmationRequest struct {
	Password string `json:"password"`
}

type endBatchRequest struct {
	models.EndBatchInput
	Password string `json:"password"`
}

func (h *Handler) listDenominations(c *gin.Context) {
	country := c.DefaultQuery("country_code", config.DefaultCountryCode())
	list, err := h.Catalog.GetDenominations(c.Request.Context(), country)
	if err != nil {
		respondError(c, models.AsCollaboratorError("list denominations", err))
		return
	}
	if list == nil {
		list = []models.Denomination{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) logout(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	if err := middlewares.RevokeToken(c.Request.Context()); err != nil {
		respondError(c, models.AsCollaboratorError("logout", err))
		return
	}
	if h.Workflow.Session != nil {
		h.Workflow.Session.Forget(actor.EmployeeId)
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) openBatch(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var input models.NewTransactionBatch
	if !bindBody(c, &input) {
		return
	}
	b, err := h.Workflow.OpenBatch(c.Request.Context(), actor, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batchResponse(b))
}

func (h *Handler) listBatches(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.Workflow.ListBatches(c.Request.Context(), actor, q)
	if err != nil {
		respondError(c, err)
		return
	}
	ids := make([]int, 0, len(page.Data))
	for _, b := range page.Data {
		ids = append(ids, b.EmployeeId)
	}
	employees := h.Lookup.Employees(c.Request.Context(), ids)
	c.JSON(http.StatusOK, mapPage(page, func(b *models.TransactionBatch) BatchResponse {
		resp := batchResponse(b)
		if e := employees[b.EmployeeId]; e != nil {
			resp.EmployeeName = e.Name
		}
		return resp
	}))
}

func (h *Handler) currentBatch(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	b, err := h.Workflow.CurrentBatch(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, currentBatchResponse{State: models.BatchStateOf(b), Batch: b})
}

func (h *Handler) getBatch(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	b, err := h.Workflow.GetBatch(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(b))
}

func (h *Handler) getBlotter(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	blotter, err := h.Workflow.GetBlotter(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, blotter)
}

func (h *Handler) requestView(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req confirmationRequest
	if !bindBody(c, &req) {
		return
	}
	b, err := h.Workflow.RequestView(c.Request.Context(), actor, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(b))
}

func (h *Handler) approveView(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	b, err := h.Workflow.ApproveView(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(b))
}

func (h *Handler) denyView(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	b, err := h.Workflow.DenyView(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(b))
}

func (h *Handler) endBatch(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	var req endBatchRequest
	if !bindBody(c, &req) {
		return
	}
	b, err := h.Workflow.CloseBatch(c.Request.Context(), actor, &req.EndBatchInput, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(b))
}

func (h *Handler) setDepositInBank(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.DepositInBankInput
	if !bindBody(c, &input) {
		return
	}
	b, err := h.Workflow.SetDepositInBank(c.Request.Context(), actor, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(b))
}

func (h *Handler) recordCollections(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.CollectionsInput
	if !bindBody(c, &input) {
		return
	}
	b, err := h.Workflow.RecordCollections(c.Request.Context(), actor, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(b))
}

func (h *Handler) recomputeTotals(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	b, err := h.Workflow.RecomputeTotals(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(b))
}
