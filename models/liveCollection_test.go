package models

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func online(id int, amount string) *OnlineRemittance {
	return &OnlineRemittance{ID: id, Amount: decimal.RequireFromString(amount)}
}

func ids[T Identifier](list []T) []int {
	out := make([]int, 0, len(list))
	for _, item := range list {
		out = append(out, item.GetId())
	}
	return out
}

func sameIds(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestApplyLiveEvent_CreateUpdateDeleteRoundTrip(t *testing.T) {
	var list []*OnlineRemittance
	list = ApplyLiveEvent(list, LiveEvent[*OnlineRemittance]{Action: EventActionCreate, Item: online(1, "10")})
	list = ApplyLiveEvent(list, LiveEvent[*OnlineRemittance]{Action: EventActionUpdate, Item: online(1, "12")})
	if len(list) != 1 || !list[0].Amount.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected updated record, got %+v", list)
	}
	list = ApplyLiveEvent(list, LiveEvent[*OnlineRemittance]{Action: EventActionDelete, Item: online(1, "0")})
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %v", ids(list))
	}
}

func TestApplyLiveEvent_Ordering(t *testing.T) {
	list := []*OnlineRemittance{online(3, "3"), online(2, "2"), online(1, "1")}

	list = ApplyLiveEvent(list, LiveEvent[*OnlineRemittance]{Action: EventActionCreate, Item: online(4, "4")})
	if !sameIds(ids(list), []int{4, 3, 2, 1}) {
		t.Fatalf("create should prepend, got %v", ids(list))
	}
	list = ApplyLiveEvent(list, LiveEvent[*OnlineRemittance]{Action: EventActionUpdate, Item: online(2, "20")})
	if !sameIds(ids(list), []int{4, 3, 2, 1}) || !list[2].Amount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("update should replace in place, got %v", ids(list))
	}
	list = ApplyLiveEvent(list, LiveEvent[*OnlineRemittance]{Action: EventActionUpdate, Item: online(9, "9")})
	if !sameIds(ids(list), []int{9, 4, 3, 2, 1}) {
		t.Fatalf("update of unknown id should insert at head, got %v", ids(list))
	}
	list = ApplyLiveEvent(list, LiveEvent[*OnlineRemittance]{Action: EventActionDelete, Item: online(77, "0")})
	if !sameIds(ids(list), []int{9, 4, 3, 2, 1}) {
		t.Fatalf("delete of unknown id should be a no-op, got %v", ids(list))
	}
}

func TestApplyLiveEvent_DoesNotAliasInput(t *testing.T) {
	list := []*OnlineRemittance{online(1, "1"), online(2, "2")}
	_ = ApplyLiveEvent(list, LiveEvent[*OnlineRemittance]{Action: EventActionUpdate, Item: online(2, "5")})
	if !list[1].Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("input slice was modified")
	}
}

func TestLiveCollection_EventsDuringFetchSurviveFetch(t *testing.T) {
	c := NewLiveCollection[*OnlineRemittance]()
	gen := c.StartFetch()

	// events race ahead of the fetch
	c.Apply(LiveEvent[*OnlineRemittance]{Action: EventActionUpdate, Item: online(5, "50")})
	c.Apply(LiveEvent[*OnlineRemittance]{Action: EventActionCreate, Item: online(6, "60")})
	c.Apply(LiveEvent[*OnlineRemittance]{Action: EventActionDelete, Item: online(1, "0")})

	// fetch snapshot predates the update of 5 and the delete of 1, but already has 6
	fetched := []*OnlineRemittance{online(6, "60"), online(5, "5"), online(1, "1")}
	if !c.CompleteFetch(gen, fetched) {
		t.Fatalf("expected current fetch to be installed")
	}
	items := c.Items()
	if !sameIds(ids(items), []int{6, 5}) {
		t.Fatalf("unexpected items after fetch: %v", ids(items))
	}
	if !items[1].Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("fetch overwrote a newer patch: %s", items[1].Amount)
	}
}

func TestLiveCollection_SupersededFetchIsDiscarded(t *testing.T) {
	c := NewLiveCollection[*OnlineRemittance]()
	old := c.StartFetch()
	current := c.StartFetch()

	if !c.CompleteFetch(current, []*OnlineRemittance{online(2, "2")}) {
		t.Fatalf("expected latest fetch installed")
	}
	if c.CompleteFetch(old, []*OnlineRemittance{online(1, "1")}) {
		t.Fatalf("expected stale fetch discarded")
	}
	if !sameIds(ids(c.Items()), []int{2}) {
		t.Fatalf("unexpected items: %v", ids(c.Items()))
	}
}

func TestLiveCollection_AbortFetchKeepsItems(t *testing.T) {
	c := NewLiveCollection(online(1, "1"))
	gen := c.StartFetch()
	c.AbortFetch(gen)
	if c.CompleteFetch(gen, nil) {
		t.Fatalf("aborted fetch must not complete")
	}
	if c.Len() != 1 {
		t.Fatalf("expected items kept, got %d", c.Len())
	}
}

func TestLiveCollection_ConcurrentApply(t *testing.T) {
	c := NewLiveCollection[*OnlineRemittance]()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.Apply(LiveEvent[*OnlineRemittance]{Action: EventActionCreate, Item: online(id, "1")})
		}(i)
	}
	wg.Wait()
	if c.Len() != 50 {
		t.Fatalf("expected 50 items, got %d", c.Len())
	}
	if !ComputeRemittanceTotal(c.Items()).Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected total")
	}
}
