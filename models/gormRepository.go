package models

import (
	"context"
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateKey is returned when a write hits a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

type txKey struct{}

// dbFrom returns the transaction carried by ctx, or the global connection.
func dbFrom(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	if db == nil {
		db = config.GetDB()
	}
	return db.WithContext(ctx)
}

type GormTransactor struct {
	db *gorm.DB
}

// NewGormTransactor uses config.GetDB() when db is nil.
func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

func (t *GormTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return dbFrom(ctx, t.db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// GormRepository implements Repository[T] on MySQL. Rows are branch scoped
// by the branch guard plugin when T has a branch_id column.
type GormRepository[T any] struct {
	db       *gorm.DB
	resource string
}

// NewGormRepository uses config.GetDB() when db is nil.
func NewGormRepository[T any](db *gorm.DB) *GormRepository[T] {
	return &GormRepository[T]{db: db, resource: utils.GetTypeName[T]()}
}

func (r *GormRepository[T]) translate(id int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: r.resource, ID: id}
	}
	if isDuplicateKeyErr(err) {
		return fmt.Errorf("%s: %w: %v", r.resource, ErrDuplicateKey, err)
	}
	return err
}

func (r *GormRepository[T]) Create(ctx context.Context, entity *T) error {
	return r.translate(0, dbFrom(ctx, r.db).Create(entity).Error)
}

func (r *GormRepository[T]) UpdateById(ctx context.Context, id int, mutate func(*T) error) (*T, error) {
	var result T
	err := dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&result, id).Error; err != nil {
			return err
		}
		if err := mutate(&result); err != nil {
			return err
		}
		return tx.Save(&result).Error
	})
	if err != nil {
		return nil, r.translate(id, err)
	}
	return &result, nil
}

func (r *GormRepository[T]) DeleteById(ctx context.Context, id int) (*T, error) {
	var result T
	err := dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&result, id).Error; err != nil {
			return err
		}
		return tx.Delete(&result).Error
	})
	if err != nil {
		return nil, r.translate(id, err)
	}
	return &result, nil
}

func (r *GormRepository[T]) GetById(ctx context.Context, id int) (*T, error) {
	var result T
	if err := dbFrom(ctx, r.db).First(&result, id).Error; err != nil {
		return nil, r.translate(id, err)
	}
	return &result, nil
}

func applyFilters(db *gorm.DB, filters []Filter) *gorm.DB {
	for _, f := range filters {
		db = db.Where(clause.Eq{Column: clause.Column{Name: f.Column}, Value: f.Value})
	}
	return db
}

func (r *GormRepository[T]) GetPaginated(ctx context.Context, query PageQuery) (*PaginatedResult[T], error) {
	q := query.Normalize()
	var model T
	var total int64
	dbCtx := applyFilters(dbFrom(ctx, r.db).Model(&model), q.Filters)
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, err
	}
	var results []*T
	if err := applyFilters(dbFrom(ctx, r.db).Model(&model), q.Filters).
		Order(q.OrderBy).Limit(q.PageSize).Offset(q.Offset()).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return NewPaginatedResult(results, total, q.PageSize), nil
}

// FindAll returns matching rows, newest first.
func (r *GormRepository[T]) FindAll(ctx context.Context, filters ...Filter) ([]*T, error) {
	var model T
	var results []*T
	if err := applyFilters(dbFrom(ctx, r.db).Model(&model), filters).
		Order("id desc").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *GormRepository[T]) SaveSet(ctx context.Context, upserts []*T, deleteIds []int) error {
	err := dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if len(deleteIds) > 0 {
			var model T
			if err := tx.Where("id IN ?", utils.UniqueSlice(deleteIds)).Delete(&model).Error; err != nil {
				return err
			}
		}
		if len(upserts) > 0 {
			if err := tx.Save(upserts).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return r.translate(0, err)
}
