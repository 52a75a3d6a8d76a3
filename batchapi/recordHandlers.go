package batchapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/models"
)

type CheckRemittanceResponse struct {
	*models.CheckRemittance
	BankName string `json:"bank_name"`
}

type OnlineRemittanceResponse struct {
	*models.OnlineRemittance
	BankName string `json:"bank_name"`
}

type DisbursementResponse struct {
	*models.DisbursementTransaction
	CategoryName string                  `json:"category_name"`
	CategoryCode models.DisbursementCode `json:"category_code"`
}

type saveCashCountsRequest struct {
	CashCounts []models.CashCountInput `json:"cash_counts"`
}

func bankName(banks map[int]*models.Bank, id int) string {
	if b := banks[id]; b != nil {
		return b.Name
	}
	return ""
}

func (h *Handler) getCashCounts(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	sheet, err := h.Workflow.GetCashCountSheet(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func (h *Handler) saveCashCounts(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var req saveCashCountsRequest
	if !bindBody(c, &req) {
		return
	}
	sheet, err := h.Workflow.SaveCashCounts(c.Request.Context(), actor, id, req.CashCounts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func (h *Handler) listCheckRemittances(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.Workflow.ListCheckRemittances(c.Request.Context(), actor, id, q)
	if err != nil {
		respondError(c, err)
		return
	}
	ids := make([]int, 0, len(page.Data))
	for _, r := range page.Data {
		ids = append(ids, r.BankId)
	}
	banks := h.Lookup.Banks(c.Request.Context(), ids)
	c.JSON(http.StatusOK, mapPage(page, func(r *models.CheckRemittance) CheckRemittanceResponse {
		return CheckRemittanceResponse{CheckRemittance: r, BankName: bankName(banks, r.BankId)}
	}))
}

func (h *Handler) createCheckRemittance(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewRemittance
	if !bindBody(c, &input) {
		return
	}
	r, err := h.Workflow.CreateCheckRemittance(c.Request.Context(), actor, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) updateCheckRemittance(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	rid, ok := pathId(c, "rid")
	if !ok {
		return
	}
	var input models.NewRemittance
	if !bindBody(c, &input) {
		return
	}
	r, err := h.Workflow.UpdateCheckRemittance(c.Request.Context(), actor, id, rid, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) deleteCheckRemittance(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	rid, ok := pathId(c, "rid")
	if !ok {
		return
	}
	r, err := h.Workflow.DeleteCheckRemittance(c.Request.Context(), actor, id, rid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) listOnlineRemittances(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.Workflow.ListOnlineRemittances(c.Request.Context(), actor, id, q)
	if err != nil {
		respondError(c, err)
		return
	}
	ids := make([]int, 0, len(page.Data))
	for _, r := range page.Data {
		ids = append(ids, r.BankId)
	}
	banks := h.Lookup.Banks(c.Request.Context(), ids)
	c.JSON(http.StatusOK, mapPage(page, func(r *models.OnlineRemittance) OnlineRemittanceResponse {
		return OnlineRemittanceResponse{OnlineRemittance: r, BankName: bankName(banks, r.BankId)}
	}))
}

func (h *Handler) createOnlineRemittance(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewRemittance
	if !bindBody(c, &input) {
		return
	}
	r, err := h.Workflow.CreateOnlineRemittance(c.Request.Context(), actor, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) updateOnlineRemittance(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	rid, ok := pathId(c, "rid")
	if !ok {
		return
	}
	var input models.NewRemittance
	if !bindBody(c, &input) {
		return
	}
	r, err := h.Workflow.UpdateOnlineRemittance(c.Request.Context(), actor, id, rid, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) deleteOnlineRemittance(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	rid, ok := pathId(c, "rid")
	if !ok {
		return
	}
	r, err := h.Workflow.DeleteOnlineRemittance(c.Request.Context(), actor, id, rid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) listDisbursements(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.Workflow.ListDisbursements(c.Request.Context(), actor, id, q)
	if err != nil {
		respondError(c, err)
		return
	}
	ids := make([]int, 0, len(page.Data))
	for _, d := range page.Data {
		ids = append(ids, d.DisbursementCategoryId)
	}
	categories := h.Lookup.Categories(c.Request.Context(), ids)
	c.JSON(http.StatusOK, mapPage(page, func(d *models.DisbursementTransaction) DisbursementResponse {
		resp := DisbursementResponse{DisbursementTransaction: d}
		if cat := categories[d.DisbursementCategoryId]; cat != nil {
			resp.CategoryName = cat.Name
			resp.CategoryCode = cat.Code
		}
		return resp
	}))
}

func (h *Handler) createDisbursement(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input models.NewDisbursement
	if !bindBody(c, &input) {
		return
	}
	d, err := h.Workflow.CreateDisbursement(c.Request.Context(), actor, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) deleteDisbursement(c *gin.Context) {
	actor, ok := actorOf(c)
	if !ok {
		return
	}
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	did, ok := pathId(c, "did")
	if !ok {
		return
	}
	d, err := h.Workflow.DeleteDisbursement(c.Request.Context(), actor, id, did)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
