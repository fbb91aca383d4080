package item

import (
	"context"
	"math"
	"testing"

	"github.com/naughtygopher/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeMocker struct {
	data map[int64]Item
	err  error
}

func (sMo *storeMocker) Item(_ context.Context, id int64) (*Item, error) {
	if sMo.err != nil {
		return nil, sMo.err
	}
	item, ok := sMo.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func newStoreMocker(items ...Item) *storeMocker {
	smo := &storeMocker{
		data: make(map[int64]Item),
	}
	for _, it := range items {
		smo.data[it.ID] = it
	}
	return smo
}

type staticFactor float64

func (sf staticFactor) Factor() float64 {
	return float64(sf)
}

func TestAdjustedPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    int
		itemType string
		factor   float64
		expected int
	}{
		{name: "restaurant applies factor", price: 220, itemType: TypeRestaurant, factor: 1.5, expected: 330},
		{name: "other type keeps price", price: 220, itemType: "takeaway", factor: 1.5, expected: 220},
		{name: "type match is case-sensitive", price: 220, itemType: "Restaurant", factor: 1.5, expected: 220},
		{name: "empty type keeps price", price: 220, itemType: "", factor: 1.5, expected: 220},
		{name: "fraction is truncated", price: 99, itemType: TypeRestaurant, factor: 1.25, expected: 123},
		{name: "discount factor", price: 101, itemType: TypeRestaurant, factor: 0.5, expected: 50},
		{name: "negative price truncates toward zero", price: -7, itemType: TypeRestaurant, factor: 1.5, expected: -10},
		{name: "overflow saturates at int32", price: 2_000_000_000, itemType: TypeRestaurant, factor: 1.5, expected: math.MaxInt32},
		{name: "underflow saturates at int32", price: -2_000_000_000, itemType: TypeRestaurant, factor: 1.5, expected: math.MinInt32},
		{name: "max int32 price with unit factor", price: math.MaxInt32, itemType: TypeRestaurant, factor: 1, expected: math.MaxInt32},
		{name: "float64 product", price: 100, itemType: TypeRestaurant, factor: 0.7, expected: 70},
		{name: "zero factor", price: 220, itemType: TypeRestaurant, factor: 0, expected: 0},
		{name: "negative factor", price: 220, itemType: TypeRestaurant, factor: -0.5, expected: -110},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AdjustedPrice(tt.price, tt.itemType, tt.factor))
		})
	}
}

// TestPriced ensures the business logic is in place
/*
It tests the following scenarios
1. Restaurant pricing.
2. Default pricing.
3. Missing record.
4. The stored record is left untouched.
5. Store failures are propagated.
*/
func TestPriced(t *testing.T) {
	requirer := require.New(t)
	asserter := assert.New(t)
	ctx := t.Context()

	biriyani := Item{ID: 1, Name: "Mutton Biriyani", Price: 220}
	smo := newStoreMocker(biriyani)
	svc, err := NewService(smo, staticFactor(1.5))
	requirer.NoError(err)

	t.Run("restaurant price is multiplied by the factor", func(_ *testing.T) {
		priced, err := svc.Priced(ctx, 1, TypeRestaurant)
		requirer.NoError(err)
		asserter.Equal(Item{ID: 1, Name: "Mutton Biriyani", Price: 330}, *priced)
	})

	t.Run("any other type returns the stored price", func(_ *testing.T) {
		priced, err := svc.Priced(ctx, 1, "takeaway")
		requirer.NoError(err)
		asserter.Equal(biriyani, *priced)
	})

	t.Run("repeated requests give identical responses", func(_ *testing.T) {
		first, err := svc.Priced(ctx, 1, TypeRestaurant)
		requirer.NoError(err)
		second, err := svc.Priced(ctx, 1, TypeRestaurant)
		requirer.NoError(err)
		asserter.Equal(first, second)
	})

	t.Run("stored record is not mutated", func(_ *testing.T) {
		_, err := svc.Priced(ctx, 1, TypeRestaurant)
		requirer.NoError(err)
		asserter.Equal(biriyani, smo.data[1])
	})

	t.Run("missing item is not found", func(_ *testing.T) {
		priced, err := svc.Priced(ctx, 99, "any")
		requirer.ErrorIs(err, ErrNotFound)
		asserter.Nil(priced)
	})

	t.Run("store failure is propagated", func(_ *testing.T) {
		failing := newStoreMocker()
		failing.err = errors.Internal("connection refused")
		fsvc, err := NewService(failing, staticFactor(1.5))
		requirer.NoError(err)

		_, err = fsvc.Priced(ctx, 1, TypeRestaurant)
		requirer.Error(err)
		asserter.NotErrorIs(err, ErrNotFound)
	})
}
