package server

import (
	"fmt"
	"net/http"

	"github.com/greymass/account-creation-portal/idp"
	"github.com/greymass/account-creation-portal/internal/config"
	"github.com/greymass/account-creation-portal/server/authflowrepo"
	"github.com/greymass/account-creation-portal/sessions"
	"github.com/rs/zerolog"
)

// NewFromConfig builds every component from cfg. A provider whose
// credentials are missing or whose key cannot be imported is left out and
// logged; the rest of the service still starts.
func NewFromConfig(cfg *config.Config, flowStates authflowrepo.Repo, logger zerolog.Logger) (*Server, error) {
	httpClient := &http.Client{Timeout: cfg.Outbound.Timeout}

	registry := BootstrapProviders(cfg, logger)
	if len(registry.All()) == 0 {
		logger.Warn().Msg("no identity providers configured; sign-in is unavailable")
	}

	keySets := idp.NewKeySetCache(httpClient)
	for _, p := range registry.All() {
		keySets.Register(p.Issuer, p.JWKSURL)
	}

	codec, err := sessions.NewCodec(cfg.Session.Secret, sessions.CookieName(cfg.Session.CookieSecure), cfg.Session.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("[Server NewFromConfig] session codec: %w", err)
	}

	return New(Deps{
		Config:    cfg,
		Providers: registry,
		Exchanger: idp.NewExchanger(httpClient, idp.RetryPolicy{
			MaxRetries: cfg.Outbound.MaxRetries,
			Backoff:    cfg.Outbound.RetryBackoff,
		}, logger),
		Verifier:   idp.NewVerifier(keySets),
		Sessions:   codec,
		FlowStates: flowStates,
		Logger:     logger,
	})
}

// BootstrapProviders registers the providers whose configuration is
// complete.
func BootstrapProviders(cfg *config.Config, logger zerolog.Logger) *idp.Registry {
	var providers []*idp.Provider

	if cfg.AppleEnabled() {
		assertions, err := idp.NewAssertionGenerator(cfg.Apple)
		if err != nil {
			logger.Error().Err(err).Str("provider", idp.AppleName).Msg("provider disabled: signing key rejected")
		} else {
			providers = append(providers, idp.Apple(cfg.Apple, cfg.BaseURL, assertions))
			logger.Info().Str("provider", idp.AppleName).Str("key_id", assertions.KeyID()).Msg("provider enabled")
		}
	} else {
		logger.Warn().Str("provider", idp.AppleName).Msg("provider disabled: incomplete configuration")
	}

	if cfg.GoogleEnabled() {
		providers = append(providers, idp.Google(cfg.Google, cfg.BaseURL))
		logger.Info().Str("provider", idp.GoogleName).Msg("provider enabled")
	} else {
		logger.Debug().Str("provider", idp.GoogleName).Msg("provider disabled: incomplete configuration")
	}

	return idp.NewRegistry(providers...)
}
