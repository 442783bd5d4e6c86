package setup

import (
	"context"

	"github.com/GlintPay/gccs-vault/backend"
	"github.com/GlintPay/gccs-vault/backend/vault"
	"github.com/GlintPay/gccs-vault/config"
	"github.com/rs/zerolog/log"
)

// Init builds every enabled backend, highest priority first. Configuration problems surface here, before any request is served.
func Init(ctx context.Context, appConfig config.ApplicationConfiguration) (backend.Backends, error) {
	var backends backend.Backends

	if appConfig.Vault.Disabled {
		log.Info().Msg("Vault backend is disabled")
	} else {
		log.Info().Msg("Enabling Vault backend")
		backends = append(backends, &vault.Backend{EnableTrace: appConfig.Tracing.Enabled})
	}

	for i, each := range backends {
		if backendErr := each.Init(ctx, appConfig); backendErr != nil {
			for _, initialised := range backends[:i] {
				initialised.Close()
			}
			return nil, backendErr
		}
	}

	return backends.Sorted(), nil
}
