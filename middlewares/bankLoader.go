package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/teller_backend/models"
	"gorm.io/gorm"
)

type bankReader struct {
	db *gorm.DB
}

func (r *bankReader) getBanks(ctx context.Context, ids []int) []*dataloader.Result[*models.Bank] {
	var results []models.Bank
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Bank](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetBanks(ctx context.Context, ids []int) ([]*models.Bank, []error) {
	loaders := For(ctx)
	return loaders.BankLoader.LoadMany(ctx, ids)()
}
