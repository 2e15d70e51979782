package authflow

import (
	"context"
	"net/url"

	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/credentials"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
	"github.com/bankwatch/bankwatch/internal/token"
)

// AuthorizeURL builds the browser URL a user opens to approve access.
func AuthorizeURL(cfg config.OAuthConfig) string {
	params := url.Values{}
	params.Set("client_id", cfg.ClientID)
	params.Set("scope", cfg.Scope)
	params.Set("redirect_uri", cfg.RedirectURI)
	params.Set("response_type", "code")
	return cfg.AuthorizeURL + "?" + params.Encode()
}

// EnsureCredential returns a usable stored credential, or runs the
// browser authorization flow: start the callback listener, surface the
// authorization URL, and wait for the credential file to become
// complete.
func EnsureCredential(ctx context.Context, store *credentials.Store, manager *token.Manager, oauthCfg config.OAuthConfig, credCfg config.CredentialsConfig, logger *logging.Logger) (*models.Credential, error) {
	cred, err := store.Load()
	if err == nil && cred != nil && cred.Complete() {
		return cred, nil
	}

	listener := NewListener(manager, oauthCfg, logger)
	go func() {
		if err := listener.Start(); err != nil {
			logger.Error("callback listener failed", "error", err.Error())
		}
	}()
	defer func() {
		_ = listener.Shutdown(context.Background())
	}()

	logger.Info("authorization required, open this URL in a browser",
		"url", AuthorizeURL(oauthCfg),
	)

	return store.Wait(ctx, credCfg.WaitTimeout, credCfg.WaitInterval)
}
