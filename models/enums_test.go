package models

import (
	"encoding/json"
	"testing"
)

func TestBatchTopicRoundTrip(t *testing.T) {
	topic := BatchTopic(EventEntityCheckRemittance, 42, EventActionCreate)
	if topic != "check-remittance.transaction-batch.42.create" {
		t.Fatalf("unexpected topic %s", topic)
	}
	entity, id, action, err := ParseBatchTopic(topic)
	if err != nil || entity != EventEntityCheckRemittance || id != 42 || action != EventActionCreate {
		t.Fatalf("unexpected parse: %s %d %s %v", entity, id, action, err)
	}
	for _, bad := range []string{"bills-and-coins.update", "cash-count.branch.1.create", "cash-count.transaction-batch.x.create", "cash-count.transaction-batch.1.upsert"} {
		if _, _, _, err := ParseBatchTopic(bad); err == nil {
			t.Fatalf("expected %q rejected", bad)
		}
	}
}

func TestDisbursementCodeUnmarshal(t *testing.T) {
	var in struct {
		Code DisbursementCode `json:"code"`
	}
	if err := json.Unmarshal([]byte(`{"code":"LOAN_RELEASE"}`), &in); err != nil || in.Code != DisbursementCodeLoanRelease {
		t.Fatalf("unexpected: %v %s", err, in.Code)
	}
	if err := json.Unmarshal([]byte(`{"code":"BONUS"}`), &in); err == nil {
		t.Fatalf("expected invalid code rejected")
	}
}

func TestPaginatedResult(t *testing.T) {
	q := PageQuery{Page: 0, PageSize: 500}.Normalize()
	if q.Page != 1 || q.PageSize != MaxPageSize || q.OrderBy != "id desc" {
		t.Fatalf("unexpected normalized query: %+v", q)
	}
	r := NewPaginatedResult[TransactionBatch](nil, 41, 20)
	if r.TotalPage != 3 || r.Data == nil || r.PageSize != 20 {
		t.Fatalf("unexpected result: %+v", r)
	}
}
