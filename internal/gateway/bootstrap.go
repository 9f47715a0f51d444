package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nulzo/content-gateway/internal/cli"
	"github.com/nulzo/content-gateway/internal/config"
	"github.com/nulzo/content-gateway/internal/llm"
	"go.uber.org/zap"
)

const healthTimeout = 5 * time.Second

// BootstrapProviders initializes and registers all enabled providers from configuration.
// A failing health check is reported but does not keep a provider out of
// the table.
func BootstrapProviders(ctx context.Context, service Service, providers []config.ProviderConfig, log *zap.Logger) int {
	registeredCount := 0
	validate := validator.New()
	factory := llm.NewProviderFactory()

	for _, pCfg := range providers {
		if !pCfg.Enabled {
			continue
		}

		if err := validate.Struct(&pCfg); err != nil {
			log.Warn(fmt.Sprintf("%s %s %s",
				cli.WarningSign(),
				cli.Stylize(fmt.Sprintf("%s\t", pCfg.ID), cli.Black),
				cli.Stylize("Skipping provider with invalid configuration", cli.Yellow),
			), zap.Error(err))
			continue
		}

		providerInstance, err := factory.CreateProvider(pCfg)
		if err != nil {
			log.Error(fmt.Sprintf("%s %s %s",
				cli.CrossMark(),
				cli.Stylize(fmt.Sprintf("%s\t", pCfg.ID), cli.Black),
				cli.Stylize("Failed to initialize provider", cli.Red),
			),
				zap.String("type", pCfg.Type),
				zap.Strings("known_types", llm.Types()),
				zap.Error(err),
			)
			continue
		}

		healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
		if err := providerInstance.Health(healthCtx); err != nil {
			log.Warn(fmt.Sprintf("%s %s %s",
				cli.WarningSign(),
				cli.Stylize(fmt.Sprintf("%s\t", pCfg.ID), cli.Black),
				cli.Stylize("Health check failed, registering anyway", cli.Yellow),
			), zap.Error(err))
		}
		cancel()

		if err := service.RegisterProvider(ctx, providerInstance); err != nil {
			log.Error("Failed to register provider", zap.String("id", pCfg.ID), zap.Error(err))
			continue
		}

		log.Info(fmt.Sprintf("%s %s %s",
			cli.CheckMark(),
			cli.Stylize(fmt.Sprintf("%s\t", pCfg.ID), cli.Black),
			cli.Stylize(pCfg.Type, cli.Cyan),
		), zap.Bool("server_key", providerInstance.HasServerKey()))

		registeredCount++
	}

	if registeredCount == 0 {
		log.Warn("No providers were registered. API will not function correctly.")
	}

	return registeredCount
}
