// Package token decides whether the cached OAuth credential is usable,
// refreshes it when it nears expiry, and surfaces the failures that need a
// brand-new authorization flow.
package token

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/credentials"
	"github.com/bankwatch/bankwatch/internal/errors"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
)

// Manager owns the credential lifecycle. Expiry is re-evaluated on every
// access; there is no background refresh timer, so network calls happen
// only when a caller asks for a token.
type Manager struct {
	store      *credentials.Store
	client     *http.Client
	cfg        config.OAuthConfig
	buffer     time.Duration
	logger     *logging.Logger
	now        func() time.Time
	onRefresh  func(*models.Credential)
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient overrides the HTTP client used for token grants.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.client = c
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithRefreshCallback registers a callback invoked after every persisted
// token refresh or exchange.
func WithRefreshCallback(fn func(*models.Credential)) Option {
	return func(m *Manager) {
		m.onRefresh = fn
	}
}

// NewManager creates a token manager over the given credential store.
func NewManager(store *credentials.Store, cfg config.OAuthConfig, buffer time.Duration, logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewLogger()
	}
	m := &Manager{
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
		cfg:    cfg,
		buffer: buffer,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccessToken returns a valid access token, refreshing the credential
// first when it is inside the expiry buffer. No credential, or a refresh
// the authorization server rejects, yields ErrAuthRequired: the caller
// must run a full re-authorization flow, retrying here won't help.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	cred, err := m.store.Load()
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", &errors.ErrAuthRequired{Reason: "no cached credential"}
	}

	if cred.Valid(m.now(), m.buffer) {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", &errors.ErrAuthRequired{Reason: "credential expired and no refresh token available"}
	}

	refreshed, err := m.refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", err
	}

	return refreshed.AccessToken, nil
}

// refresh runs the refresh-token grant and persists the new credential,
// replacing the prior record wholesale.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (*models.Credential, error) {
	m.logger.Info("refreshing OAuth token")

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"redirect_uri":  {m.cfg.RedirectURI},
	}

	cred, err := m.grant(ctx, form)
	if err != nil {
		var apiErr *errors.ErrAPIRequest
		if stderrors.As(err, &apiErr) {
			// The authorization server rejected the refresh token. Only a
			// new authorization flow can recover.
			return nil, &errors.ErrAuthRequired{Reason: "token refresh rejected", Err: apiErr}
		}
		return nil, fmt.Errorf("token refresh: %w", err)
	}

	return cred, nil
}

// Exchange runs the authorization-code grant for a code obtained from the
// callback listener and persists the resulting credential.
func (m *Manager) Exchange(ctx context.Context, code string) (*models.Credential, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {m.cfg.ClientID},
		"client_secret": {m.cfg.ClientSecret},
		"redirect_uri":  {m.cfg.RedirectURI},
	}

	cred, err := m.grant(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}
	return cred, nil
}

func (m *Manager) grant(ctx context.Context, form url.Values) (*models.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.ErrAPIRequest{Status: resp.StatusCode, Body: string(body)}
	}

	var tokenResp models.TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, &errors.ErrProtocol{Operation: "parse token response", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return nil, &errors.ErrProtocol{Operation: "parse token response", Err: fmt.Errorf("no access_token in response")}
	}

	cred := tokenResp.Credential(m.now())
	if err := m.store.Save(cred); err != nil {
		return nil, err
	}

	m.logger.Info("token persisted", "expires_at", cred.ExpiresAt)
	if m.onRefresh != nil {
		m.onRefresh(cred)
	}

	return cred, nil
}
