package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/teller_backend/models"
	"gorm.io/gorm"
)

type disbursementCategoryReader struct {
	db *gorm.DB
}

func (r *disbursementCategoryReader) getDisbursementCategories(ctx context.Context, ids []int) []*dataloader.Result[*models.DisbursementCategory] {
	var results []models.DisbursementCategory
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.DisbursementCategory](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetDisbursementCategories(ctx context.Context, ids []int) ([]*models.DisbursementCategory, []error) {
	loaders := For(ctx)
	return loaders.DisbursementCategoryLoader.LoadMany(ctx, ids)()
}
