// Package api maintains all the APIs exposed by this application
/*
It's beneficial to prefix the API with the respective module, so that it's easier for devs to go
through all APIs of a given module. e.g. ItemPriced & PricingRefresh.

Every transport (HTTP, gRPC, Kafka subscriber) calls into this package, none of them call the
domain packages directly.
*/
package api

import (
	"context"

	"github.com/onlydevelop/restaurant-service-demo/internal/item"
	"github.com/onlydevelop/restaurant-service-demo/internal/pricing"
)

type itemService interface {
	Priced(ctx context.Context, id int64, itemType string) (*item.Item, error)
}

type pricingHolder interface {
	Snapshot() pricing.Config
	Replace(cfg pricing.Config) error
}

// API struct holds all the initialized service structs of respective modules, which has
// its API exposed.
type API struct {
	itemService itemService
	pricing     pricingHolder
}

func NewService(itSvc itemService, pricing pricingHolder) *API {
	return &API{
		itemService: itSvc,
		pricing:     pricing,
	}
}
