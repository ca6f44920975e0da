package gateway

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/puku-sh/gateway/internal/config"
	"github.com/puku-sh/gateway/internal/llm"
)

// BootstrapProviders builds and registers every enabled provider from
// configuration. A provider that fails validation, construction, or its
// health probe is skipped; the gateway still starts with whatever remains.
func BootstrapProviders(ctx context.Context, service Service, providers []config.ProviderConfig, log *zap.Logger) int {
	registered := 0
	validate := validator.New()

	for _, pCfg := range providers {
		if !pCfg.Enabled {
			continue
		}

		if err := validate.Struct(&pCfg); err != nil {
			log.Warn("skipping provider with incomplete configuration",
				zap.String("id", pCfg.ID),
				zap.Error(err))
			continue
		}

		factory, err := llm.Get(pCfg.Type)
		if err != nil {
			log.Error("unknown provider type",
				zap.String("id", pCfg.ID),
				zap.String("type", pCfg.Type))
			continue
		}

		instance, err := factory(pCfg)
		if err != nil {
			log.Error("failed to initialize provider",
				zap.String("id", pCfg.ID),
				zap.Error(err))
			continue
		}

		// Health probes are the one place upstream calls get a deadline.
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = instance.Health(healthCtx)
		cancel()
		if err != nil {
			log.Error("provider unhealthy, skipping registration",
				zap.String("id", pCfg.ID),
				zap.Error(err))
			continue
		}

		service.RegisterProvider(instance)
		log.Info("provider registered",
			zap.String("id", pCfg.ID),
			zap.String("type", pCfg.Type))
		registered++
	}

	if registered == 0 {
		log.Warn("no providers registered; routed requests will fail")
	}

	return registered
}
