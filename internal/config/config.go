package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Mode        string            `yaml:"mode"` // "sandbox" or "production"
	Bank        BankConfig        `yaml:"bank"`
	OAuth       OAuthConfig       `yaml:"oauth"`
	Security    SecurityConfig    `yaml:"security"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Sync        SyncConfig        `yaml:"sync"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// BankConfig contains open-banking API configuration.
type BankConfig struct {
	BaseURL            string        `yaml:"base_url"`
	InquirePath        string        `yaml:"inquire_path"`
	AccountNumber      string        `yaml:"account_number"`
	Currency           string        `yaml:"currency"`
	Channel            string        `yaml:"channel"`
	UserAgent          string        `yaml:"user_agent"`
	CustomerIP         string        `yaml:"customer_ip"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// OAuthConfig contains authorization server configuration.
type OAuthConfig struct {
	TokenURL     string `yaml:"token_url"`
	AuthorizeURL string `yaml:"authorize_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	Scope        string `yaml:"scope"`
	ListenAddr   string `yaml:"listen_addr"`
}

// SecurityConfig contains key material and algorithm selectors for the
// signed/encrypted payload pipeline.
type SecurityConfig struct {
	PrivateKeyPath    string `yaml:"private_key_path"`
	ClientCertPath    string `yaml:"client_cert_path"`
	SymmetricKeyPath  string `yaml:"symmetric_key_path"`
	SignatureAlg      string `yaml:"signature_alg"`
	KeyWrapAlg        string `yaml:"key_wrap_alg"`
	ContentEncryption string `yaml:"content_encryption"`
	EncryptPayloads   bool   `yaml:"encrypt_payloads"`
	IncludeClientCert bool   `yaml:"include_client_cert"`
}

// CredentialsConfig contains credential file settings.
type CredentialsConfig struct {
	Path         string        `yaml:"path"`
	ExpiryBuffer time.Duration `yaml:"expiry_buffer"`
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
	WaitInterval time.Duration `yaml:"wait_interval"`
}

// SyncConfig contains synchronization loop settings.
type SyncConfig struct {
	Interval        time.Duration `yaml:"interval"`
	BackoffInterval time.Duration `yaml:"backoff_interval"`
	ErrorThreshold  int           `yaml:"error_threshold"`
	LookbackDays    int           `yaml:"lookback_days"`
	StatsEvery      int           `yaml:"stats_every"`
	StatsLimit      int           `yaml:"stats_limit"`
}

// TelegramConfig contains notification settings.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Mode == "" {
		c.Mode = "sandbox"
	}
	if c.Mode != "sandbox" && c.Mode != "production" {
		return fmt.Errorf("mode must be sandbox or production, got %q", c.Mode)
	}

	if err := c.Bank.Validate(); err != nil {
		return fmt.Errorf("bank: %w", err)
	}
	if err := c.OAuth.Validate(); err != nil {
		return fmt.Errorf("oauth: %w", err)
	}
	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("security: %w", err)
	}
	if err := c.Credentials.Validate(); err != nil {
		return fmt.Errorf("credentials: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}

// Validate validates bank API configuration and applies defaults.
func (b *BankConfig) Validate() error {
	if b.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if !strings.HasPrefix(b.BaseURL, "http://") && !strings.HasPrefix(b.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL")
	}
	if b.AccountNumber == "" {
		return fmt.Errorf("account_number is required")
	}
	if b.InquirePath == "" {
		b.InquirePath = "/inquire-account-transaction/v1"
	}
	if b.Currency == "" {
		b.Currency = "VND"
	}
	if b.Channel == "" {
		b.Channel = "ProdChannel"
	}
	if b.UserAgent == "" {
		b.UserAgent = "bankwatch/1.0"
	}
	if b.CustomerIP == "" {
		b.CustomerIP = "127.0.0.1"
	}
	if b.RequestTimeout <= 0 {
		b.RequestTimeout = 30 * time.Second
	}
	return nil
}

// Validate validates OAuth configuration and applies defaults.
func (o *OAuthConfig) Validate() error {
	if o.TokenURL == "" {
		return fmt.Errorf("token_url is required")
	}
	if o.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if o.RedirectURI == "" {
		o.RedirectURI = "http://localhost:5000/callback"
	}
	if o.Scope == "" {
		o.Scope = "read"
	}
	if o.ListenAddr == "" {
		o.ListenAddr = ":5000"
	}
	return nil
}

// Validate validates security configuration and applies defaults.
func (s *SecurityConfig) Validate() error {
	if s.PrivateKeyPath == "" {
		s.PrivateKeyPath = "certs/private_key.pem"
	}
	if s.SymmetricKeyPath == "" {
		s.SymmetricKeyPath = "certs/symmetric.key"
	}
	if s.SignatureAlg == "" {
		s.SignatureAlg = "RS256"
	}
	if s.KeyWrapAlg == "" {
		s.KeyWrapAlg = "A256KW"
	}
	if s.ContentEncryption == "" {
		s.ContentEncryption = "A128GCM"
	}
	if s.IncludeClientCert && s.ClientCertPath == "" {
		return fmt.Errorf("client_cert_path is required when include_client_cert is set")
	}
	return nil
}

// Validate validates credential file configuration and applies defaults.
func (c *CredentialsConfig) Validate() error {
	if c.Path == "" {
		c.Path = "data/token.json"
	}
	if c.ExpiryBuffer <= 0 {
		c.ExpiryBuffer = 60 * time.Second
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 180 * time.Second
	}
	if c.WaitInterval <= 0 {
		c.WaitInterval = time.Second
	}
	return nil
}

// Validate validates sync loop configuration and applies defaults.
func (s *SyncConfig) Validate() error {
	if s.Interval <= 0 {
		s.Interval = 60 * time.Second
	}
	if s.BackoffInterval <= 0 {
		s.BackoffInterval = 300 * time.Second
	}
	if s.ErrorThreshold <= 0 {
		s.ErrorThreshold = 5
	}
	if s.LookbackDays <= 0 {
		s.LookbackDays = 30
	}
	if s.StatsEvery <= 0 {
		s.StatsEvery = 10
	}
	if s.StatsLimit <= 0 {
		s.StatsLimit = 5
	}
	return nil
}

// Validate validates metrics configuration and applies defaults.
func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.ListenAddr == "" {
		m.ListenAddr = ":9317"
	}
	return nil
}

// Sandbox reports whether the sandbox endpoints are in use.
func (c *Config) Sandbox() bool {
	return c.Mode == "sandbox"
}
