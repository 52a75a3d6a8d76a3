package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/models"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	BankLoader                 *dataloader.Loader[int, *models.Bank]
	DisbursementCategoryLoader *dataloader.Loader[int, *models.DisbursementCategory]
	EmployeeLoader             *dataloader.Loader[int, *models.Employee]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	bankReader := &bankReader{db: conn}
	disbursementCategoryReader := &disbursementCategoryReader{db: conn}
	employeeReader := &employeeReader{db: conn}

	return &Loaders{
		BankLoader: dataloader.NewBatchedLoader(bankReader.getBanks,
			dataloader.WithWait[int, *models.Bank](time.Millisecond)),
		DisbursementCategoryLoader: dataloader.NewBatchedLoader(disbursementCategoryReader.getDisbursementCategories,
			dataloader.WithWait[int, *models.DisbursementCategory](time.Millisecond)),
		EmployeeLoader: dataloader.NewBatchedLoader(employeeReader.getEmployees,
			dataloader.WithWait[int, *models.Employee](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		c.Request = c.Request.WithContext(WithLoaders(c.Request.Context(), loader))
		c.Next()
	}
}

func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results from db into dataloader results, one per id in order.
// ids without a row get T's default.
func generateLoaderResults[T models.Data](results []T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]T, len(results))
	for _, result := range results {
		resultMap[result.GetId()] = result
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		data, ok := resultMap[id]
		if !ok {
			data = data.GetDefault(id).(T)
		}
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: &data})
	}
	return loaderResults
}
