package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	goerrors "errors"

	"github.com/bankwatch/bankwatch/internal/errors"
)

const minimalYAML = `
bank:
  base_url: https://openapi.example.com/sandbox/open-banking
  account_number: "1234567890"
oauth:
  token_url: https://openapi.example.com/sandbox/oauth2/token
  authorize_url: https://openapi.example.com/sandbox/oauth2/authorize
  client_id: my-client
  client_secret: my-secret
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if cfg.Mode != "sandbox" {
		t.Errorf("expected sandbox mode default, got %q", cfg.Mode)
	}
	if cfg.Bank.Currency != "VND" {
		t.Errorf("expected VND currency default, got %q", cfg.Bank.Currency)
	}
	if cfg.Bank.RequestTimeout != 30*time.Second {
		t.Errorf("expected 30s request timeout, got %v", cfg.Bank.RequestTimeout)
	}
	if cfg.Bank.InsecureSkipVerify {
		t.Error("TLS verification must default to enabled")
	}
	if cfg.Credentials.ExpiryBuffer != 60*time.Second {
		t.Errorf("expected 60s expiry buffer, got %v", cfg.Credentials.ExpiryBuffer)
	}
	if cfg.Credentials.WaitTimeout != 180*time.Second {
		t.Errorf("expected 180s wait timeout, got %v", cfg.Credentials.WaitTimeout)
	}
	if cfg.Sync.Interval != 60*time.Second {
		t.Errorf("expected 60s sync interval, got %v", cfg.Sync.Interval)
	}
	if cfg.Sync.BackoffInterval != 300*time.Second {
		t.Errorf("expected 300s backoff interval, got %v", cfg.Sync.BackoffInterval)
	}
	if cfg.Sync.ErrorThreshold != 5 {
		t.Errorf("expected error threshold 5, got %d", cfg.Sync.ErrorThreshold)
	}
	if cfg.Sync.LookbackDays != 30 {
		t.Errorf("expected 30 lookback days, got %d", cfg.Sync.LookbackDays)
	}
	if cfg.Security.SignatureAlg != "RS256" {
		t.Errorf("expected RS256 default, got %q", cfg.Security.SignatureAlg)
	}
	if cfg.Security.KeyWrapAlg != "A256KW" || cfg.Security.ContentEncryption != "A128GCM" {
		t.Errorf("unexpected encryption defaults: %q/%q", cfg.Security.KeyWrapAlg, cfg.Security.ContentEncryption)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing base_url":       "bank:\n  account_number: \"1\"\noauth:\n  token_url: https://x\n  client_id: c\n",
		"missing account_number": "bank:\n  base_url: https://x\noauth:\n  token_url: https://x\n  client_id: c\n",
		"missing token_url":      "bank:\n  base_url: https://x\n  account_number: \"1\"\noauth:\n  client_id: c\n",
		"bad mode":               "mode: staging\n" + minimalYAML,
	}

	for name, yml := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(yml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("bank: ["))
	var parseErr *errors.ErrConfigParse
	if !goerrors.As(err, &parseErr) {
		t.Fatalf("expected ErrConfigParse, got %v", err)
	}
}

func TestLoaderEnvSubstitution(t *testing.T) {
	t.Setenv("BANKWATCH_TEST_ACCOUNT", "9988776655")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
bank:
  base_url: https://openapi.example.com/open-banking
  account_number: "${BANKWATCH_TEST_ACCOUNT}"
oauth:
  token_url: https://openapi.example.com/oauth2/token
  client_id: my-client
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bank.AccountNumber != "9988776655" {
		t.Errorf("expected env-substituted account number, got %q", cfg.Bank.AccountNumber)
	}
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	var notFound *errors.ErrConfigNotFound
	if !goerrors.As(err, &notFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}
