// Package testkit holds in-memory stand-ins for the storage and messaging
// collaborators, for tests that run without MySQL, Redis or Pub/Sub.
package testkit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/mmdatafocus/teller_backend/models"
)

// MemRepo is an in-memory models.Repository. Filters compare the JSON form of
// the column against the filter value. FindAll returns newest id first.
type MemRepo[T any] struct {
	// OnCreate runs before a row is stored and can veto it.
	OnCreate func(*T) error
	// FailWith makes every read and write fail.
	FailWith error

	mu     sync.Mutex
	rows   map[int]T
	nextId int
}

func NewMemRepo[T any]() *MemRepo[T] {
	return &MemRepo[T]{rows: map[int]T{}}
}

func idOf(v interface{}) int {
	return int(reflect.ValueOf(v).Elem().FieldByName("ID").Int())
}

func setId(v interface{}, id int) {
	reflect.ValueOf(v).Elem().FieldByName("ID").SetInt(int64(id))
}

func (r *MemRepo[T]) Seed(items ...*T) {
	for _, item := range items {
		_ = r.Create(context.Background(), item)
	}
}

func (r *MemRepo[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *MemRepo[T]) Create(ctx context.Context, entity *T) error {
	if r.FailWith != nil {
		return r.FailWith
	}
	if r.OnCreate != nil {
		if err := r.OnCreate(entity); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := idOf(entity)
	if id == 0 {
		r.nextId++
		id = r.nextId
		setId(entity, id)
	} else if id > r.nextId {
		r.nextId = id
	}
	r.rows[id] = *entity
	return nil
}

func (r *MemRepo[T]) get(id int) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	return row, ok
}

func (r *MemRepo[T]) notFound(id int) error {
	var zero T
	return &models.NotFoundError{Resource: reflect.TypeOf(zero).Name(), ID: id}
}

// UpdateById does not hold the lock while mutate runs.
func (r *MemRepo[T]) UpdateById(ctx context.Context, id int, mutate func(*T) error) (*T, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	row, ok := r.get(id)
	if !ok {
		return nil, r.notFound(id)
	}
	if err := mutate(&row); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.rows[id] = row
	r.mu.Unlock()
	out := row
	return &out, nil
}

func (r *MemRepo[T]) DeleteById(ctx context.Context, id int) (*T, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, r.notFound(id)
	}
	delete(r.rows, id)
	return &row, nil
}

func (r *MemRepo[T]) GetById(ctx context.Context, id int) (*T, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	row, ok := r.get(id)
	if !ok {
		return nil, r.notFound(id)
	}
	return &row, nil
}

func matches(row interface{}, filters []models.Filter) bool {
	raw, _ := json.Marshal(row)
	var fields map[string]interface{}
	_ = json.Unmarshal(raw, &fields)
	for _, f := range filters {
		if fmt.Sprint(fields[f.Column]) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

func (r *MemRepo[T]) FindAll(ctx context.Context, filters ...models.Filter) ([]*T, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0, len(r.rows))
	for id := range r.rows {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))
	var out []*T
	for _, id := range ids {
		row := r.rows[id]
		if matches(row, filters) {
			out = append(out, &row)
		}
	}
	return out, nil
}

func (r *MemRepo[T]) GetPaginated(ctx context.Context, query models.PageQuery) (*models.PaginatedResult[T], error) {
	q := query.Normalize()
	all, err := r.FindAll(ctx, q.Filters...)
	if err != nil {
		return nil, err
	}
	start := q.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + q.PageSize
	if end > len(all) {
		end = len(all)
	}
	return models.NewPaginatedResult(all[start:end], int64(len(all)), q.PageSize), nil
}

func (r *MemRepo[T]) SaveSet(ctx context.Context, upserts []*T, deleteIds []int) error {
	if r.FailWith != nil {
		return r.FailWith
	}
	r.mu.Lock()
	for _, id := range deleteIds {
		delete(r.rows, id)
	}
	r.mu.Unlock()
	for _, item := range upserts {
		if idOf(item) == 0 {
			if err := r.Create(ctx, item); err != nil {
				return err
			}
			continue
		}
		r.mu.Lock()
		r.rows[idOf(item)] = *item
		r.mu.Unlock()
	}
	return nil
}
