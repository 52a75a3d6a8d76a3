package batchapi

import (
	"context"

	"github.com/mmdatafocus/teller_backend/middlewares"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/utils"
)

// ReferenceLookup resolves the reference rows named by list responses.
// Ids that fail to load are left out of the returned maps.
type ReferenceLookup interface {
	Banks(ctx context.Context, ids []int) map[int]*models.Bank
	Categories(ctx context.Context, ids []int) map[int]*models.DisbursementCategory
	Employees(ctx context.Context, ids []int) map[int]*models.Employee
}

// LoaderLookup batches lookups through the request's dataloaders.
type LoaderLookup struct{}

func collect[T any](ids []int, items []*T, errs []error) map[int]*T {
	out := make(map[int]*T, len(ids))
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			continue
		}
		if i < len(items) && items[i] != nil {
			out[id] = items[i]
		}
	}
	return out
}

func (LoaderLookup) Banks(ctx context.Context, ids []int) map[int]*models.Bank {
	ids = utils.UniqueSlice(ids)
	items, errs := middlewares.GetBanks(ctx, ids)
	return collect(ids, items, errs)
}

func (LoaderLookup) Categories(ctx context.Context, ids []int) map[int]*models.DisbursementCategory {
	ids = utils.UniqueSlice(ids)
	items, errs := middlewares.GetDisbursementCategories(ctx, ids)
	return collect(ids, items, errs)
}

func (LoaderLookup) Employees(ctx context.Context, ids []int) map[int]*models.Employee {
	ids = utils.UniqueSlice(ids)
	items, errs := middlewares.GetEmployees(ctx, ids)
	return collect(ids, items, errs)
}
