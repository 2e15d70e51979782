package token

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	goerrors "errors"

	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/credentials"
	"github.com/bankwatch/bankwatch/internal/errors"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1_700_000_000, 0)

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.WithOutput(io.Discard))
}

func newTestManager(t *testing.T, tokenURL string) (*Manager, *credentials.Store) {
	t.Helper()
	store := credentials.NewStore(filepath.Join(t.TempDir(), "token.json"), quietLogger())
	cfg := config.OAuthConfig{
		TokenURL:     tokenURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:5000/callback",
	}
	m := NewManager(store, cfg, 60*time.Second, quietLogger(), WithClock(func() time.Time { return testNow }))
	return m, store
}

func TestAccessTokenAbsentCredential(t *testing.T) {
	m, _ := newTestManager(t, "http://unused.invalid")

	_, err := m.AccessToken(context.Background())
	var authErr *errors.ErrAuthRequired
	require.True(t, goerrors.As(err, &authErr))
}

func TestAccessTokenValidNoRefresh(t *testing.T) {
	refreshCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
	}))
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)
	require.NoError(t, store.Save(&models.Credential{
		AccessToken:  "still-good",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Unix() + 3600,
	}))

	got, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still-good", got)
	assert.Zero(t, refreshCalls, "a valid credential must not trigger the refresh path")
}

func TestAccessTokenExpiredTriggersSingleRefresh(t *testing.T) {
	refreshCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))

		json.NewEncoder(w).Encode(models.TokenResponse{
			AccessToken:  "fresh-access",
			RefreshToken: "fresh-refresh",
			ExpiresIn:    1800,
		})
	}))
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)
	require.NoError(t, store.Save(&models.Credential{
		AccessToken:  "stale-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    testNow.Unix() + 30, // inside the 60s buffer
	}))

	got, err := m.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", got)
	assert.Equal(t, 1, refreshCalls)

	// the new credential replaced the old one wholesale
	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", persisted.AccessToken)
	assert.Equal(t, "fresh-refresh", persisted.RefreshToken)
	assert.Equal(t, testNow.Unix()+1800, persisted.ExpiresAt)
}

func TestAccessTokenRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)
	require.NoError(t, store.Save(&models.Credential{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		ExpiresAt:    testNow.Unix() - 10,
	}))

	_, err := m.AccessToken(context.Background())
	var authErr *errors.ErrAuthRequired
	require.True(t, goerrors.As(err, &authErr), "a rejected refresh needs re-authorization, got %v", err)

	var apiErr *errors.ErrAPIRequest
	require.True(t, goerrors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestAccessTokenMissingRefreshToken(t *testing.T) {
	m, store := newTestManager(t, "http://unused.invalid")
	require.NoError(t, store.Save(&models.Credential{
		AccessToken: "stale",
		ExpiresAt:   testNow.Unix() - 10,
	}))

	_, err := m.AccessToken(context.Background())
	var authErr *errors.ErrAuthRequired
	require.True(t, goerrors.As(err, &authErr))
}

func TestAccessTokenTransportErrorIsNotAuthRequired(t *testing.T) {
	// point at a closed server so the HTTP call itself fails
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	m, store := newTestManager(t, url)
	require.NoError(t, store.Save(&models.Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Unix() - 10,
	}))

	_, err := m.AccessToken(context.Background())
	require.Error(t, err)
	var authErr *errors.ErrAuthRequired
	assert.False(t, goerrors.As(err, &authErr), "transient transport failures must stay retry-worthy")
}

func TestExchangePersistsCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))

		json.NewEncoder(w).Encode(models.TokenResponse{
			AccessToken:  "first-access",
			RefreshToken: "first-refresh",
			ExpiresIn:    3600,
		})
	}))
	defer srv.Close()

	var callbackCred *models.Credential
	store := credentials.NewStore(filepath.Join(t.TempDir(), "token.json"), quietLogger())
	m := NewManager(store, config.OAuthConfig{
		TokenURL: srv.URL,
		ClientID: "client-id",
	}, time.Minute, quietLogger(),
		WithClock(func() time.Time { return testNow }),
		WithRefreshCallback(func(c *models.Credential) { callbackCred = c }),
	)

	cred, err := m.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "first-access", cred.AccessToken)
	require.NotNil(t, callbackCred)
	assert.Equal(t, "first-access", callbackCred.AccessToken)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, cred, persisted)
}
