package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/onlydevelop/restaurant-service-demo/internal/pricing"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
)

// PricingRefresh swaps in cfg for all subsequent lookups. An invalid cfg is rejected and the
// current configuration is kept.
func (ap *API) PricingRefresh(ctx context.Context, cfg pricing.Config) error {
	previous := ap.pricing.Snapshot()
	err := ap.pricing.Replace(cfg)
	if err != nil {
		return err
	}

	logger.InfoCtx(
		ctx,
		"[pricing] configuration refreshed",
		zap.Float64("previousFactor", previous.Factor),
		zap.Float64("factor", cfg.Factor),
	)

	return nil
}

func (ap *API) PricingCurrent() pricing.Config {
	return ap.pricing.Snapshot()
}
