package batchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/middlewares"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/realtime"
	"github.com/mmdatafocus/teller_backend/testkit"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/mmdatafocus/teller_backend/workflow"
	"github.com/shopspring/decimal"
)

type allowAll struct{}

func (allowAll) Confirm(ctx context.Context, actor workflow.Actor, action workflow.ConfirmAction, credential string) error {
	if credential == "wrong" {
		return models.ErrConfirmationDeclined
	}
	return nil
}

type noLock struct{}

func (noLock) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return func() {}, nil
}

type fixedSignatures struct{}

func (fixedSignatures) Store(ctx context.Context, actor workflow.Actor, kind string, encoded string) (string, error) {
	return fmt.Sprintf("https://storage.test/%d/%s.png", actor.EmployeeId, kind), nil
}

func (fixedSignatures) Remove(ctx context.Context, url string) error { return nil }

type mapLookup struct {
	banks map[int]*models.Bank
}

func (l mapLookup) Banks(ctx context.Context, ids []int) map[int]*models.Bank {
	return l.banks
}

func (l mapLookup) Categories(ctx context.Context, ids []int) map[int]*models.DisbursementCategory {
	return map[int]*models.DisbursementCategory{}
}

func (l mapLookup) Employees(ctx context.Context, ids []int) map[int]*models.Employee {
	return map[int]*models.Employee{9: {ID: 9, Name: "Ana Reyes"}}
}

type apiHarness struct {
	router  *gin.Engine
	batches *testkit.MemRepo[models.TransactionBatch]
	events  *testkit.RecordingPublisher
	hub     *realtime.Hub
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	banks := testkit.NewMemRepo[models.Bank]()
	banks.Seed(&models.Bank{BranchId: 1, Name: "BDO"})
	categories := testkit.NewMemRepo[models.DisbursementCategory]()
	categories.Seed(&models.DisbursementCategory{BranchId: 1, Name: "Petty cash", Code: models.DisbursementCodePettyCash})

	h := &apiHarness{
		batches: testkit.NewMemRepo[models.TransactionBatch](),
		events:  &testkit.RecordingPublisher{},
		hub:     realtime.NewHub(nil),
	}
	w := &workflow.BatchWorkflow{
		Repos: workflow.Repositories{
			Batches:       h.batches,
			CashCounts:    testkit.NewMemRepo[models.CashCount](),
			Checks:        testkit.NewMemRepo[models.CheckRemittance](),
			Onlines:       testkit.NewMemRepo[models.OnlineRemittance](),
			Disbursements: testkit.NewMemRepo[models.DisbursementTransaction](),
			Categories:    categories,
			Banks:         banks,
		},
		Tx: testkit.PassThroughTx{},
		Catalog: testkit.StaticCatalog{
			{Name: "1000", Value: decimal.NewFromInt(1000), CountryCode: "PH"},
			{Name: "100", Value: decimal.NewFromInt(100), CountryCode: "PH"},
		},
		Events:     h.events,
		Confirmer:  allowAll{},
		Locker:     noLock{},
		Signatures: fixedSignatures{},
		Session:    testkit.NewMemSession(),
	}
	handler := NewHandler(w, h.hub, nil)
	handler.Lookup = mapLookup{banks: map[int]*models.Bank{1: {ID: 1, Name: "BDO"}}}

	h.router = gin.New()
	h.router.Use(middlewares.SessionMiddleware())
	handler.Register(h.router)
	return h
}

func token(t *testing.T, employeeId, branchId int, role models.EmployeeRole) string {
	t.Helper()
	tok, err := utils.JwtGenerate(employeeId, branchId, "user", string(role))
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func (h *apiHarness) do(t *testing.T, tok, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func expectStatus(t *testing.T, step string, got, expected int, body map[string]interface{}) {
	t.Helper()
	if got != expected {
		t.Fatalf("%s: expected %d, got %d %v", step, expected, got, body)
	}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", models.NewValidationError("amount", "must not be negative"), http.StatusBadRequest},
		{"declined", models.ErrConfirmationDeclined, http.StatusUnauthorized},
		{"approver", workflow.ErrApproverRequired, http.StatusForbidden},
		{"not found", &models.NotFoundError{Resource: "TransactionBatch", ID: 1}, http.StatusNotFound},
		{"conflict", models.NewStateConflictError("open batch", models.BatchStateOpen, models.ErrBatchAlreadyOpen), http.StatusConflict},
		{"lock busy", utils.ErrLockNotObtained, http.StatusConflict},
		{"collaborator", &models.CollaboratorError{Op: "list", Err: errors.New("timeout")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusOf(tc.err); got != tc.expected {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.expected, got)
		}
	}
}

func TestBatchLifecycleOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	teller := token(t, 9, 1, models.EmployeeRoleTeller)
	approver := token(t, 50, 1, models.EmployeeRoleApprover)
	otherBranch := token(t, 51, 2, models.EmployeeRoleApprover)

	code, body := h.do(t, "", http.MethodGet, "/api/transaction-batches/current", nil)
	expectStatus(t, "anonymous", code, http.StatusUnauthorized, body)

	code, body = h.do(t, teller, http.MethodGet, "/api/transaction-batches/current", nil)
	expectStatus(t, "current before open", code, http.StatusOK, body)
	if body["state"] != string(models.BatchStateNoBatch) || body["batch"] != nil {
		t.Fatalf("expected no batch, got %v", body)
	}

	open := map[string]interface{}{
		"beginning_balance":  500,
		"currency":           "PHP",
		"provider_name":      "Vault",
		"provider_signature": "data:image/png;base64,AAAA",
	}
	code, body = h.do(t, teller, http.MethodPost, "/api/transaction-batches", open)
	expectStatus(t, "open", code, http.StatusCreated, body)
	if body["state"] != string(models.BatchStateOpen) {
		t.Fatalf("expected OPEN, got %v", body["state"])
	}
	id := int(body["id"].(float64))
	base := fmt.Sprintf("/api/transaction-batches/%d", id)

	code, body = h.do(t, teller, http.MethodPost, "/api/transaction-batches", open)
	expectStatus(t, "second open", code, http.StatusConflict, body)

	code, body = h.do(t, teller, http.MethodPost, "/api/transaction-batches", map[string]interface{}{"currency": "PHP"})
	expectStatus(t, "invalid open", code, http.StatusBadRequest, body)

	code, body = h.do(t, teller, http.MethodPut, base+"/cash-counts", map[string]interface{}{
		"cash_counts": []map[string]interface{}{{"name": "1000", "quantity": 2}, {"name": "100", "quantity": 3}},
	})
	expectStatus(t, "save cash counts", code, http.StatusOK, body)
	if body["total"] != "2300" {
		t.Fatalf("expected total 2300, got %v", body["total"])
	}

	code, body = h.do(t, teller, http.MethodPost, base+"/check-remittances", map[string]interface{}{
		"bank_id": 1, "reference_number": "CHK-1", "account_name": "Juan", "amount": 250,
	})
	expectStatus(t, "create check", code, http.StatusCreated, body)

	code, body = h.do(t, teller, http.MethodGet, base+"/check-remittances", nil)
	expectStatus(t, "list checks", code, http.StatusOK, body)
	rows := body["data"].([]interface{})
	if len(rows) != 1 || rows[0].(map[string]interface{})["bank_name"] != "BDO" || body["totalSize"].(float64) != 1 {
		t.Fatalf("unexpected check list %v", body)
	}

	code, body = h.do(t, teller, http.MethodGet, "/api/transaction-batches", nil)
	expectStatus(t, "list batches", code, http.StatusOK, body)
	if first := body["data"].([]interface{})[0].(map[string]interface{}); first["employee_name"] != "Ana Reyes" {
		t.Fatalf("expected enriched employee name, got %v", first)
	}

	code, body = h.do(t, teller, http.MethodGet, base+"/blotter", nil)
	expectStatus(t, "blotter before request", code, http.StatusConflict, body)

	code, body = h.do(t, teller, http.MethodPost, "/api/transaction-batches/current/request-view", map[string]string{"password": "wrong"})
	expectStatus(t, "declined request", code, http.StatusUnauthorized, body)

	code, body = h.do(t, teller, http.MethodPost, "/api/transaction-batches/current/request-view", map[string]string{"password": "ok"})
	expectStatus(t, "request view", code, http.StatusOK, body)
	if body["state"] != string(models.BatchStateViewRequested) {
		t.Fatalf("expected VIEW_REQUESTED, got %v", body["state"])
	}

	code, body = h.do(t, teller, http.MethodPost, base+"/approve-view", nil)
	expectStatus(t, "teller approve", code, http.StatusForbidden, body)

	code, body = h.do(t, otherBranch, http.MethodPost, base+"/approve-view", nil)
	expectStatus(t, "other branch approve", code, http.StatusNotFound, body)

	code, body = h.do(t, approver, http.MethodPost, base+"/approve-view", nil)
	expectStatus(t, "approve", code, http.StatusOK, body)

	code, body = h.do(t, teller, http.MethodGet, base+"/blotter", nil)
	expectStatus(t, "blotter", code, http.StatusOK, body)
	if body["state"] != string(models.BatchStateViewApproved) {
		t.Fatalf("unexpected blotter %v", body)
	}

	code, body = h.do(t, teller, http.MethodPost, "/api/transaction-batches/current/end", map[string]string{
		"signature": "data:image/png;base64,AAAA", "name": "Ana Reyes", "position": "Teller", "password": "ok",
	})
	expectStatus(t, "end batch", code, http.StatusOK, body)
	if body["state"] != string(models.BatchStateClosed) || body["is_closed"] != true {
		t.Fatalf("expected closed batch, got %v", body)
	}

	code, body = h.do(t, teller, http.MethodPost, base+"/check-remittances", map[string]interface{}{
		"bank_id": 1, "reference_number": "CHK-2", "account_name": "Juan", "amount": 10,
	})
	expectStatus(t, "mutate closed", code, http.StatusConflict, body)

	if !h.events.Has(fmt.Sprintf("check-remittance.transaction-batch.%d.create", id)) {
		t.Fatalf("missing check create event in %v", h.events.Topics())
	}
}

func TestBadPathAndBody(t *testing.T) {
	h := newAPIHarness(t)
	teller := token(t, 9, 1, models.EmployeeRoleTeller)

	code, body := h.do(t, teller, http.MethodGet, "/api/transaction-batches/abc", nil)
	expectStatus(t, "bad id", code, http.StatusBadRequest, body)
	if body["field"] != "id" {
		t.Fatalf("expected field id, got %v", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/transaction-batches", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+teller)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for broken JSON, got %d", w.Code)
	}

	code, body = h.do(t, teller, http.MethodGet, "/api/transaction-batches/77", nil)
	expectStatus(t, "missing batch", code, http.StatusNotFound, body)
}

func TestPushEndpointForwardsToHub(t *testing.T) {
	h := newAPIHarness(t)
	topic := models.BatchTopic(models.EventEntityCheckRemittance, 3, models.EventActionCreate)
	received := 0
	h.hub.Subscribe(topic, func(ctx context.Context, msg config.BatchEventMessage) { received++ })

	data, _ := json.Marshal(config.BatchEventMessage{Topic: topic, BatchId: 3, Payload: json.RawMessage(`{"id":1}`)})
	var push realtime.PushEnvelope
	push.Message.Data = data
	push.Message.ID = "m-1"

	code, _ := h.do(t, "", http.MethodPost, "/pubsub/batch-events", push)
	if code != http.StatusNoContent || received != 1 {
		t.Fatalf("expected delivery, got status %d and %d deliveries", code, received)
	}

	req := httptest.NewRequest(http.MethodPost, "/pubsub/batch-events", bytes.NewBufferString("garbage"))
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || received != 1 {
		t.Fatalf("malformed push should be acked and dropped, got %d", w.Code)
	}
}

type countingCatalog struct {
	invalidated []string
}

func (c *countingCatalog) Invalidate(countryCodes ...string) error {
	c.invalidated = append(c.invalidated, countryCodes...)
	return nil
}

func TestPushedCatalogUpdateInvalidatesCache(t *testing.T) {
	h := newAPIHarness(t)
	cache := &countingCatalog{}
	defer realtime.WatchCatalog(h.hub, cache, nil)()

	data, _ := json.Marshal(config.BatchEventMessage{
		Topic:   models.TopicCatalogUpdate,
		Entity:  string(models.EventEntityBillsAndCoins),
		Action:  string(models.EventActionUpdate),
		Payload: json.RawMessage(`{"country_codes":["PH"]}`),
	})
	var push realtime.PushEnvelope
	push.Message.Data = data
	push.Message.ID = "m-9"

	code, body := h.do(t, "", http.MethodPost, "/pubsub/batch-events", push)
	expectStatus(t, "catalog push", code, http.StatusNoContent, body)
	if fmt.Sprint(cache.invalidated) != "[PH]" {
		t.Fatalf("expected PH invalidated, got %v", cache.invalidated)
	}
}

func TestLogout(t *testing.T) {
	h := newAPIHarness(t)
	code, body := h.do(t, "", http.MethodPost, "/api/sessions/logout", nil)
	expectStatus(t, "anonymous logout", code, http.StatusUnauthorized, body)

	teller := token(t, 9, 1, models.EmployeeRoleTeller)
	code, body = h.do(t, teller, http.MethodPost, "/api/sessions/logout", nil)
	expectStatus(t, "logout", code, http.StatusNoContent, body)
}
