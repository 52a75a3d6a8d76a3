package realtime

import (
	"context"
	"encoding/json"

	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/sirupsen/logrus"
)

// CatalogInvalidator drops cached denomination catalogs.
type CatalogInvalidator interface {
	Invalidate(countryCodes ...string) error
}

type catalogUpdate struct {
	CountryCodes []string `json:"country_codes"`
}

// WatchCatalog invalidates cache for the countries named by every
// bills-and-coins.update event. The returned func stops watching.
func WatchCatalog(hub *Hub, cache CatalogInvalidator, logger *logrus.Logger) func() {
	return hub.Subscribe(models.TopicCatalogUpdate, func(ctx context.Context, msg config.BatchEventMessage) {
		var update catalogUpdate
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &update); err != nil {
				config.LogError(logger, "catalogWatch.go", "WatchCatalog", "decode payload", msg.ID, err)
				return
			}
		}
		if err := cache.Invalidate(update.CountryCodes...); err != nil {
			config.LogError(logger, "catalogWatch.go", "WatchCatalog", "invalidate cache", update.CountryCodes, err)
		}
	})
}
