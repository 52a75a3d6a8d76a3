package workflow

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultCatalogSchedule = "0 3 * * *"

// CatalogRefresher keeps bills_and_coins in line with the seed catalog file.
// Changed countries get their cache dropped and a bills-and-coins.update
// notification.
type CatalogRefresher struct {
	Repo   models.Repository[models.BillsAndCoins]
	Cache  *models.CachedDenominationCatalog
	Notify EventSink
	Logger *logrus.Logger
}

func catalogKey(countryCode, name string) string {
	return strings.ToUpper(strings.TrimSpace(countryCode)) + "|" + strings.ToLower(strings.TrimSpace(name))
}

// planCatalogSync returns the rows to upsert and the countries they touch.
// Rows missing from the seeds are deactivated, never deleted, so old cash
// counts keep resolving.
func planCatalogSync(seeds []config.DenominationSeed, existing []*models.BillsAndCoins) ([]*models.BillsAndCoins, []string) {
	byKey := make(map[string]*models.BillsAndCoins, len(existing))
	for _, row := range existing {
		byKey[catalogKey(row.CountryCode, row.Name)] = row
	}
	seen := make(map[string]bool, len(seeds))
	var upserts []*models.BillsAndCoins
	var countries []string

	for _, seed := range seeds {
		key := catalogKey(seed.CountryCode, seed.Name)
		seen[key] = true
		row, ok := byKey[key]
		if !ok {
			upserts = append(upserts, &models.BillsAndCoins{
				CountryCode: strings.ToUpper(seed.CountryCode),
				Name:        seed.Name,
				Value:       seed.Value,
				SortOrder:   seed.SortOrder,
				IsActive:    utils.NewTrue(),
			})
			countries = append(countries, strings.ToUpper(seed.CountryCode))
			continue
		}
		active := row.IsActive == nil || *row.IsActive
		if row.Value.Equal(seed.Value) && row.SortOrder == seed.SortOrder && active {
			continue
		}
		row.Value = seed.Value
		row.SortOrder = seed.SortOrder
		row.IsActive = utils.NewTrue()
		upserts = append(upserts, row)
		countries = append(countries, row.CountryCode)
	}

	for _, row := range existing {
		if seen[catalogKey(row.CountryCode, row.Name)] {
			continue
		}
		if row.IsActive != nil && !*row.IsActive {
			continue
		}
		row.IsActive = utils.NewFalse()
		upserts = append(upserts, row)
		countries = append(countries, row.CountryCode)
	}

	countries = utils.UniqueSlice(countries)
	sort.Strings(countries)
	return upserts, countries
}

// Sync applies the seed catalog and reports the countries that changed.
func (r *CatalogRefresher) Sync(ctx context.Context) ([]string, error) {
	seeds, err := config.LoadDenominationCatalog()
	if err != nil {
		return nil, err
	}
	existing, err := r.Repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	upserts, countries := planCatalogSync(seeds, existing)
	if len(upserts) == 0 {
		return nil, nil
	}
	if err := r.Repo.SaveSet(ctx, upserts, nil); err != nil {
		return nil, err
	}
	if r.Cache != nil {
		if err := r.Cache.Invalidate(countries...); err != nil {
			config.LogError(r.Logger, "catalogJob.go", "Sync", "invalidate cache", countries, err)
		}
	}
	if r.Notify != nil {
		payload, _ := json.Marshal(map[string][]string{"country_codes": countries})
		msg := config.BatchEventMessage{
			Topic:      models.TopicCatalogUpdate,
			Entity:     string(models.EventEntityBillsAndCoins),
			Action:     string(models.EventActionUpdate),
			Payload:    payload,
			OccurredAt: time.Now().UTC(),
		}
		if _, err := r.Notify(ctx, msg); err != nil {
			config.LogError(r.Logger, "catalogJob.go", "Sync", "notify catalog update", countries, err)
		}
	}
	return countries, nil
}

// Start schedules Sync on CATALOG_REFRESH_SCHEDULE (cron syntax, default
// daily at 03:00) in TZ, and returns the running scheduler.
func (r *CatalogRefresher) Start(ctx context.Context) (*cron.Cron, error) {
	schedule := strings.TrimSpace(os.Getenv("CATALOG_REFRESH_SCHEDULE"))
	if schedule == "" {
		schedule = defaultCatalogSchedule
	}
	loc := time.UTC
	if tz := strings.TrimSpace(os.Getenv("TZ")); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(schedule, func() {
		countries, err := r.Sync(ctx)
		if err != nil {
			config.LogError(r.Logger, "catalogJob.go", "Start", "scheduled catalog sync", schedule, err)
			return
		}
		if len(countries) > 0 && r.Logger != nil {
			r.Logger.WithFields(logrus.Fields{
				"field":     "CatalogRefresher",
				"countries": countries,
			}).Info("denomination catalog refreshed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
