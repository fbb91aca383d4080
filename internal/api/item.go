package api

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/onlydevelop/restaurant-service-demo/internal/item"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/apm"
)

func (ap *API) ItemPriced(ctx context.Context, id int64, itemType string) (*item.Item, error) {
	ctx, span := apm.Global().AppTracer().Start(ctx, "api.ItemPriced")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("item.id", id),
		attribute.String("item.type", itemType),
	)

	priced, err := ap.itemService.Priced(ctx, id, itemType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "item lookup failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("item.price", priced.Price))
	return priced, nil
}
