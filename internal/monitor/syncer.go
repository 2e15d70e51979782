package monitor

import (
	"context"
	"time"

	goerrors "errors"

	"github.com/shopspring/decimal"

	"github.com/bankwatch/bankwatch/internal/bank"
	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/errors"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/metrics"
	"github.com/bankwatch/bankwatch/internal/models"
	"github.com/bankwatch/bankwatch/internal/notify"
	"github.com/bankwatch/bankwatch/internal/store"
)

// APIClient performs one account-transaction inquiry.
type APIClient interface {
	InquireTransactions(ctx context.Context, start, end time.Time, page int) (*bank.InquiryResponse, error)
}

// Syncer drives the polling loop: inquire, ingest, back off on failure.
// Cycles run strictly sequentially; the sleep between cycles is
// unconditional.
type Syncer struct {
	client   APIClient
	store    *store.SQLiteStore
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	logger   *logging.Logger
	cfg      config.SyncConfig

	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time

	consecutiveErrors int
	successCycles     int
	attempts          int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithSleep overrides the inter-cycle sleep, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) bool) Option {
	return func(s *Syncer) {
		s.sleep = fn
	}
}

// WithClock overrides the window clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithMetrics attaches cycle and ingestion metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) {
		s.metrics = m
	}
}

// NewSyncer creates a Syncer.
func NewSyncer(client APIClient, st *store.SQLiteStore, notifier *notify.Notifier, cfg config.SyncConfig, logger *logging.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		client:   client,
		store:    st,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run executes sync cycles until ctx is cancelled, then flushes a final
// store summary.
func (s *Syncer) Run(ctx context.Context) {
	s.logger.Info("sync loop started",
		"interval", s.cfg.Interval.String(),
		"backoff_interval", s.cfg.BackoffInterval.String(),
		"lookback_days", s.cfg.LookbackDays,
	)

	for ctx.Err() == nil {
		cycleCtx := logging.WithCycleID(ctx, logging.GenerateCycleID())
		s.attempts++

		inserted, err := s.runCycle(cycleCtx)
		interval := s.cfg.Interval

		if err != nil {
			s.consecutiveErrors++
			s.recordCycle("error")

			var authErr *errors.ErrAuthRequired
			if goerrors.As(err, &authErr) {
				s.logger.ErrorWithContext(cycleCtx, "re-authorization required, waiting for new credential",
					"error", err.Error(),
					"consecutive_errors", s.consecutiveErrors,
				)
			} else {
				s.logger.ErrorWithContext(cycleCtx, "sync cycle failed",
					"error", err.Error(),
					"consecutive_errors", s.consecutiveErrors,
					"attempt", s.attempts,
				)
			}

			if s.consecutiveErrors >= s.cfg.ErrorThreshold {
				interval = s.cfg.BackoffInterval
				s.logger.WarnWithContext(cycleCtx, "error threshold reached, backing off",
					"consecutive_errors", s.consecutiveErrors,
					"sleep", interval.String(),
				)
			}
		} else {
			s.consecutiveErrors = 0
			s.successCycles++
			s.recordCycle("success")
			s.recordNewTransactions(len(inserted))

			if len(inserted) > 0 {
				s.logger.InfoWithContext(cycleCtx, "new transactions ingested", "count", len(inserted))
				s.notifier.NewTransactions(inserted)
			}

			if s.cfg.StatsEvery > 0 && s.successCycles%s.cfg.StatsEvery == 0 {
				s.reportStats(cycleCtx, true)
			}
		}

		if !s.sleep(ctx, interval) {
			break
		}
	}

	s.logger.Info("sync loop stopping, flushing final summary")
	s.reportStats(ctx, true)
}

// runCycle performs one inquiry over the lookback window and ingests
// the result.
func (s *Syncer) runCycle(ctx context.Context) ([]*models.TransactionRecord, error) {
	end := s.now()
	start := end.AddDate(0, 0, -s.cfg.LookbackDays)

	resp, err := s.client.InquireTransactions(ctx, start, end, 1)
	if err != nil {
		return nil, err
	}

	return s.Ingest(ctx, resp)
}

// Ingest parses response entries into transaction records and inserts
// them, returning only the genuinely new ones. A response without the
// expected transaction-list shape counts as zero new records, not an
// error. Entries that fail to parse are skipped, not fatal.
func (s *Syncer) Ingest(ctx context.Context, resp *bank.InquiryResponse) ([]*models.TransactionRecord, error) {
	if resp == nil || resp.Body == nil || len(resp.Body.Trans) == 0 {
		return nil, nil
	}

	var inserted []*models.TransactionRecord
	for _, entry := range resp.Body.Trans {
		rec, err := recordFromEntry(entry)
		if err != nil {
			s.logger.WarnWithContext(ctx, "skipping unparsable transaction entry",
				"seq", entry.Seq,
				"tran_date", entry.TranDate,
				"error", err.Error(),
			)
			continue
		}

		added, err := s.store.AddTransaction(rec)
		if err != nil {
			return inserted, err
		}
		if added {
			inserted = append(inserted, rec)
		}
	}

	return inserted, nil
}

func recordFromEntry(entry bank.TransactionEntry) (*models.TransactionRecord, error) {
	debit, err := parseAmount(entry.DebitAmount)
	if err != nil {
		return nil, err
	}
	credit, err := parseAmount(entry.CreditAmount)
	if err != nil {
		return nil, err
	}

	rec := &models.TransactionRecord{
		Seq:          entry.Seq,
		TranDate:     entry.TranDate,
		Remark:       entry.Remark,
		DebitAmount:  debit,
		CreditAmount: credit,
		Ref:          entry.Ref,
		CurrCode:     entry.CurrCode,
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// reportStats logs a store snapshot and optionally pushes it to the
// notification channel.
func (s *Syncer) reportStats(ctx context.Context, notifyChannel bool) {
	total, err := s.store.Count()
	if err != nil {
		s.logger.ErrorWithContext(ctx, "failed to read store totals", "error", err.Error())
		return
	}

	limit := s.cfg.StatsLimit
	if limit <= 0 {
		limit = 5
	}
	latest, err := s.store.Latest(limit)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "failed to read latest transactions", "error", err.Error())
		return
	}

	s.logger.InfoWithContext(ctx, "store summary",
		"total_transactions", total,
		"latest", len(latest),
	)
	if s.metrics != nil {
		s.metrics.StoredTransactions.Set(float64(total))
	}

	if notifyChannel {
		s.notifier.Summary(total, latest)
	}
}

func (s *Syncer) recordCycle(status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCycle(status)
	s.metrics.ConsecutiveErrors.Set(float64(s.consecutiveErrors))
}

func (s *Syncer) recordNewTransactions(n int) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordNewTransactions(n)
}

// sleepContext sleeps for d unless ctx is cancelled first. Returns
// false when the sleep was interrupted.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
