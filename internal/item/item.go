// Package item is responsible for implementing all features required for handling Item
package item

import (
	"context"
	"math"

	"github.com/naughtygopher/errors"
)

// TypeRestaurant is the only item type with its own pricing rule. Matching is case-sensitive.
const TypeRestaurant = "restaurant"

var ErrNotFound = errors.NotFound("Item not found")

type Item struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// AdjustedPrice applies the configured factor to restaurant items and truncates toward zero.
// Every other type is priced as-is. Prices are 32-bit in the stores, so results beyond the
// int32 range saturate.
// The product is computed in float64, so some factors price one unit higher than float32
// arithmetic would (100 * 0.7 is 70, not 69).
func AdjustedPrice(price int, itemType string, factor float64) int {
	if itemType != TypeRestaurant {
		return price
	}

	adjusted := math.Trunc(float64(price) * factor)
	switch {
	case adjusted >= math.MaxInt32:
		return math.MaxInt32
	case adjusted <= math.MinInt32:
		return math.MinInt32
	}

	return int(adjusted)
}

type factorSource interface {
	Factor() float64
}

// Service struct holds all the dependencies required, as interfaces. e.g. persistent store interface,
// pricing configuration etc.
// And all its usecases as methods(with pointer receiver) of this struct.
type Service struct {
	persistentStore persistentStore
	pricing         factorSource
}

// NewService accepts any external dependencies required for the item service.
func NewService(storage persistentStore, pricing factorSource) (*Service, error) {
	return &Service{
		persistentStore: storage,
		pricing:         pricing,
	}, nil
}

// Priced returns the item with its price adjusted for itemType. The stored record is never updated.
func (svc *Service) Priced(ctx context.Context, id int64, itemType string) (*Item, error) {
	stored, err := svc.persistentStore.Item(ctx, id)
	if err != nil {
		return nil, err
	}

	priced := *stored
	priced.Price = AdjustedPrice(stored.Price, itemType, svc.pricing.Factor())

	return &priced, nil
}
