package credentials

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	goerrors "errors"

	"github.com/bankwatch/bankwatch/internal/errors"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	return NewStore(path, logging.NewLogger(logging.WithOutput(io.Discard)))
}

func TestLoadAbsent(t *testing.T) {
	store := newTestStore(t)
	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestSaveThenLoad(t *testing.T) {
	store := newTestStore(t)
	want := &models.Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    1_700_003_600,
		ObtainedAt:   1_700_000_000,
	}

	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got)

	// no leftover temp files from the atomic write
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveReplacesWholesale(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&models.Credential{AccessToken: "old", RefreshToken: "old-r", ExpiresAt: 1}))
	require.NoError(t, store.Save(&models.Credential{AccessToken: "new", RefreshToken: "new-r", ExpiresAt: 2}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "new-r", got.RefreshToken)
}

func TestLoadCorruptedTreatedAsAbsent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"access_token": "trunc`), 0o600))

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestLoadIncompleteTreatedAsAbsent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"refresh_token": "no-access-token"}`), 0o600))

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestWaitReturnsImmediatelyWhenPresent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&models.Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: 9}))

	cred, err := store.Wait(context.Background(), time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "a", cred.AccessToken)
}

func TestWaitPicksUpLateWrite(t *testing.T) {
	store := newTestStore(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = store.Save(&models.Credential{AccessToken: "late", RefreshToken: "r", ExpiresAt: 9})
	}()

	cred, err := store.Wait(context.Background(), 5*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "late", cred.AccessToken)
}

func TestWaitTimesOut(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Wait(context.Background(), 80*time.Millisecond, 10*time.Millisecond)
	var authErr *errors.ErrAuthRequired
	require.True(t, goerrors.As(err, &authErr))
}

func TestWaitIgnoresIncompleteWrite(t *testing.T) {
	store := newTestStore(t)
	// a writer that produced only half the record so far
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"access_token": "partial"`), 0o600))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = store.Save(&models.Credential{AccessToken: "full", RefreshToken: "r", ExpiresAt: 9})
	}()

	cred, err := store.Wait(context.Background(), 5*time.Second, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "full", cred.AccessToken)
}
