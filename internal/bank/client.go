package bank

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/errors"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/metrics"
	"github.com/bankwatch/bankwatch/internal/secure"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// maxResponseBody caps how much of a response we read into memory.
const maxResponseBody = 10 << 20

// TokenSource supplies a currently valid access token, refreshing it
// if necessary.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// InquiryRequest is the account-transaction inquiry body. Field order
// matters: the detached signature covers this exact serialization.
type InquiryRequest struct {
	ActNumber string `json:"actNumber"`
	Curr      string `json:"curr"`
	FromDate  string `json:"fromDate"`
	ToDate    string `json:"toDate"`
	Page      string `json:"page"`
}

// TransactionEntry is a single transaction in the inquiry response.
// Amounts arrive as strings and are converted during ingestion.
type TransactionEntry struct {
	Seq          string `json:"seq"`
	TranDate     string `json:"tranDate"`
	Remark       string `json:"remark"`
	DebitAmount  string `json:"debitAmount"`
	CreditAmount string `json:"creditAmount"`
	Ref          string `json:"ref"`
	CurrCode     string `json:"currCode"`
}

// InquiryBody is the inner body of the inquiry response.
type InquiryBody struct {
	Result       string             `json:"result"`
	TotalRecords int                `json:"totalRecords"`
	TotalPages   int                `json:"totalPages"`
	Page         int                `json:"page"`
	StartingBal  decimal.Decimal    `json:"startingBal"`
	EndingBal    decimal.Decimal    `json:"endingBal"`
	Trans        []TransactionEntry `json:"trans"`
}

// InquiryResponse is the parsed inquiry response. Body may be nil when
// the server returns an empty or unexpected envelope.
type InquiryResponse struct {
	Body *InquiryBody `json:"body"`
}

// Client performs signed (and optionally encrypted) calls against the
// banking API.
type Client struct {
	cfg      config.BankConfig
	sec      config.SecurityConfig
	tokens   TokenSource
	pipeline *secure.Pipeline
	http     *http.Client
	logger   *logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithMetrics attaches request latency recording.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}

// NewClient creates a banking API client.
func NewClient(cfg config.BankConfig, sec config.SecurityConfig, tokens TokenSource, pipeline *secure.Pipeline, logger *logging.Logger, opts ...Option) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		cfg:      cfg,
		sec:      sec,
		tokens:   tokens,
		pipeline: pipeline,
		logger:   logger,
		now:      time.Now,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: cfg.InsecureSkipVerify,
				},
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// InquireTransactions performs one account-transaction inquiry for the
// given date window and page. The request body is signed over its
// plaintext serialization; when payload encryption is enabled the body
// is additionally wrapped in a JWE envelope and the response is
// decrypted before parsing.
func (c *Client) InquireTransactions(ctx context.Context, start, end time.Time, page int) (*InquiryResponse, error) {
	body := InquiryRequest{
		ActNumber: c.cfg.AccountNumber,
		Curr:      c.cfg.Currency,
		FromDate:  start.Format("20060102"),
		ToDate:    end.Format("20060102"),
		Page:      strconv.Itoa(page),
	}

	plaintext, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inquiry body: %w", err)
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	signature, err := c.pipeline.SignDetached(plaintext)
	if err != nil {
		return nil, err
	}

	payload := plaintext
	if c.pipeline.EncryptionEnabled() {
		payload, err = c.pipeline.Encrypt(plaintext)
		if err != nil {
			return nil, err
		}
	}

	url := c.cfg.BaseURL + c.cfg.InquirePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build inquiry request: %w", err)
	}
	c.setHeaders(req, token, signature)

	c.logger.DebugWithContext(ctx, "calling banking API",
		"url", url,
		"from_date", body.FromDate,
		"to_date", body.ToDate,
		"page", page,
	)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observeLatency("error", time.Since(started))
		return nil, fmt.Errorf("inquiry request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observeLatency(strconv.Itoa(resp.StatusCode), time.Since(started))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read inquiry response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.ErrAPIRequest{Status: resp.StatusCode, Body: string(raw)}
	}

	if c.pipeline.EncryptionEnabled() {
		raw, err = c.pipeline.Decrypt(raw)
		if err != nil {
			return nil, err
		}
	}

	var parsed InquiryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &errors.ErrProtocol{Operation: "inquiry response decode", Err: err}
	}

	return &parsed, nil
}

func (c *Client) setHeaders(req *http.Request, token, signature string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-API-Interaction-ID", uuid.New().String())
	req.Header.Set("X-Idempotency-Key", uuid.New().String())
	req.Header.Set("X-Customer-IP-Address", c.cfg.CustomerIP)
	req.Header.Set("Timestamp", c.now().UTC().Format(timestampLayout))
	req.Header.Set("Channel", c.cfg.Channel)
	req.Header.Set("X-JWS-Signature", signature)

	if c.sec.IncludeClientCert {
		certB64, err := c.pipeline.ClientCertificateB64()
		if err != nil {
			c.logger.Warn("could not include client certificate header", "error", err.Error())
			return
		}
		req.Header.Set("X-Client-Certificate", certB64)
	}
}

func (c *Client) observeLatency(status string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.APIRequestLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}
