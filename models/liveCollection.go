package models

import "sync"

// LiveEvent is one create/update/delete notification for a collection.
// For delete only the id of Item is read.
type LiveEvent[T Identifier] struct {
	Action EventAction
	Item   T
}

// ApplyLiveEvent is the reducer behind LiveCollection. list is most recent first.
//   - create prepends
//   - update replaces in place, or prepends when the id is unknown
//   - delete filters by id and is a no-op when the id is unknown
func ApplyLiveEvent[T Identifier](list []T, evt LiveEvent[T]) []T {
	id := evt.Item.GetId()
	switch evt.Action {
	case EventActionCreate:
		return prepend(list, evt.Item)
	case EventActionUpdate:
		for i := range list {
			if list[i].GetId() == id {
				out := make([]T, len(list))
				copy(out, list)
				out[i] = evt.Item
				return out
			}
		}
		return prepend(list, evt.Item)
	case EventActionDelete:
		out := make([]T, 0, len(list))
		for _, item := range list {
			if item.GetId() != id {
				out = append(out, item)
			}
		}
		return out
	}
	return list
}

func prepend[T any](list []T, item T) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, item)
	return append(out, list...)
}

// LiveCollection is a cached list kept current by realtime events.
//
// A fetch is bracketed by StartFetch and CompleteFetch. Events applied while a
// fetch is in flight are journaled and replayed over the fetched items, so a
// fetch result never erases a newer patch. Only the most recent fetch may
// complete; older generations are discarded.
type LiveCollection[T Identifier] struct {
	mu         sync.Mutex
	items      []T
	generation uint64
	fetching   bool
	journal    []LiveEvent[T]
}

func NewLiveCollection[T Identifier](items ...T) *LiveCollection[T] {
	c := &LiveCollection[T]{}
	c.items = append(c.items, items...)
	return c
}

func (c *LiveCollection[T]) Apply(evt LiveEvent[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = ApplyLiveEvent(c.items, evt)
	if c.fetching {
		c.journal = append(c.journal, evt)
	}
}

func (c *LiveCollection[T]) StartFetch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.fetching = true
	c.journal = nil
	return c.generation
}

// CompleteFetch installs items fetched under generation gen and reports
// whether they were used.
func (c *LiveCollection[T]) CompleteFetch(gen uint64, items []T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || !c.fetching {
		return false
	}
	next := make([]T, len(items))
	copy(next, items)
	for _, evt := range c.journal {
		// the fetch may already contain a journaled create
		if evt.Action == EventActionCreate {
			evt.Action = EventActionUpdate
		}
		next = ApplyLiveEvent(next, evt)
	}
	c.items = next
	c.journal = nil
	c.fetching = false
	return true
}

// AbortFetch ends a failed fetch without touching the items.
func (c *LiveCollection[T]) AbortFetch(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.fetching = false
		c.journal = nil
	}
}

func (c *LiveCollection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *LiveCollection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
