package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/naughtygopher/errors"
	"go.uber.org/zap"

	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
	"github.com/onlydevelop/restaurant-service-demo/internal/pricing"
)

type pricingRefreshEvent struct {
	Factor *float64 `json:"factor"`
}

// PricingRefresh replaces the pricing configuration with the one in payload, e.g. {"factor": 1.5}
func (kfk *Kafka) PricingRefresh(ctx context.Context, payload []byte) error {
	event := pricingRefreshEvent{}
	err := json.Unmarshal(payload, &event)
	if err != nil {
		// log the error and move on, if `nack`-ed, app will receive the same message, and the error.
		// Ending up in an infinite loop or Kafka backing off from delivering messages to the consumer
		// group
		logger.ErrWithStacktrace(fmt.Errorf("%q %w", string(payload), err))
		return nil
	}

	// a missing factor must not be read as zero
	if event.Factor == nil {
		logger.WarnCtx(ctx, "[kafka] ignoring pricing refresh without factor", zap.ByteString("payload", payload))
		return nil
	}

	err = kfk.apiSvc.PricingRefresh(ctx, pricing.Config{Factor: *event.Factor})
	// a rejected configuration would be rejected again on redelivery
	if errors.Is(err, pricing.ErrInvalidFactor) {
		logger.WarnCtx(ctx, "[kafka] ignoring invalid pricing refresh", zap.Error(err), zap.ByteString("payload", payload))
		return nil
	}

	return err
}
