package models

import (
	"context"
	"sort"
	"strings"

	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/utils"
)

// DenominationCatalog is the canonical bills-and-coins reference data.
type DenominationCatalog interface {
	GetDenominations(ctx context.Context, countryCode string) ([]Denomination, error)
}

// CachedDenominationCatalog reads active catalog rows through a Redis cache
// keyed by country. Invalidate is called on bills-and-coins.update.
type CachedDenominationCatalog struct {
	repo Repository[BillsAndCoins]
}

func NewCachedDenominationCatalog(repo Repository[BillsAndCoins]) *CachedDenominationCatalog {
	return &CachedDenominationCatalog{repo: repo}
}

func (c *CachedDenominationCatalog) GetDenominations(ctx context.Context, countryCode string) ([]Denomination, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		code = config.DefaultCountryCode()
	}

	cached, err := utils.RetrieveRedisList[Denomination](code)
	if err != nil {
		config.LogError(config.GetLogger(), "denominationCatalog.go", "GetDenominations", "retrieve cache", code, err)
	} else if cached != nil {
		return derefDenominations(cached), nil
	}

	rows, err := c.repo.FindAll(ctx, Where("country_code", code), Where("is_active", true))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SortOrder != rows[j].SortOrder {
			return rows[i].SortOrder < rows[j].SortOrder
		}
		return rows[i].ID < rows[j].ID
	})
	list := make([]*Denomination, 0, len(rows))
	for _, r := range rows {
		d := r.ToDenomination()
		list = append(list, &d)
	}
	if err := utils.StoreRedisList(list, code); err != nil {
		config.LogError(config.GetLogger(), "denominationCatalog.go", "GetDenominations", "store cache", code, err)
	}
	return derefDenominations(list), nil
}

// Invalidate drops cached catalogs; no codes means the configured default.
func (c *CachedDenominationCatalog) Invalidate(countryCodes ...string) error {
	if len(countryCodes) == 0 {
		countryCodes = []string{config.DefaultCountryCode()}
	}
	for _, code := range utils.UniqueSlice(countryCodes) {
		if err := utils.RemoveRedisList[Denomination](strings.ToUpper(code)); err != nil {
			return err
		}
	}
	return nil
}

func derefDenominations(list []*Denomination) []Denomination {
	out := make([]Denomination, 0, len(list))
	for _, d := range list {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}
