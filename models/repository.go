package models

import "context"

// Repository is the data-access collaborator for one entity kind.
//
// UpdateById loads the row, lets mutate change it and stores the result in
// one unit of work; an error from mutate aborts without writing. SaveSet
// upserts and deletes a set of rows atomically.
type Repository[T any] interface {
	Create(ctx context.Context, entity *T) error
	UpdateById(ctx context.Context, id int, mutate func(*T) error) (*T, error)
	DeleteById(ctx context.Context, id int) (*T, error)
	GetById(ctx context.Context, id int) (*T, error)
	GetPaginated(ctx context.Context, query PageQuery) (*PaginatedResult[T], error)
	FindAll(ctx context.Context, filters ...Filter) ([]*T, error)
	SaveSet(ctx context.Context, upserts []*T, deleteIds []int) error
}

// Transactor runs fn in one database transaction. Repositories called with
// the ctx handed to fn join that transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
