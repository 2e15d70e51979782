// Package store persists processed transactions in SQLite. Deduplication
// relies on the table's natural-key constraint, not on application checks:
// inserting an already-seen transaction is a no-op.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/bankwatch/bankwatch/internal/errors"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/models"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides SQLite-based storage for processed transactions
// with WAL mode enabled.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLiteStore creates a new SQLite store with WAL mode enabled.
func NewSQLiteStore(dbPath string, logger *logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NewLogger()
	}

	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS processed_transactions (
					seq TEXT NOT NULL,
					tran_date TEXT NOT NULL,
					remark TEXT,
					debit_amount TEXT NOT NULL DEFAULT '0',
					credit_amount TEXT NOT NULL DEFAULT '0',
					ref TEXT,
					curr_code TEXT NOT NULL DEFAULT 'VND',
					processed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (seq, tran_date)
				);
				CREATE INDEX IF NOT EXISTS idx_tran_date
					ON processed_transactions(tran_date);
			`,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := db.Exec(m.up); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
	}

	return nil
}

// AddTransaction inserts a transaction keyed by (seq, tran_date).
// Returns true if the record was genuinely new, false if the key was
// already present. INSERT OR IGNORE makes repeated ingestion of the same
// page safe without pre-checking existence.
func (s *SQLiteStore) AddTransaction(tx *models.TransactionRecord) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "validate transaction", Err: err}
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO processed_transactions
			(seq, tran_date, remark, debit_amount, credit_amount, ref, curr_code)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tx.Seq, tx.TranDate, tx.Remark, tx.DebitAmount.String(), tx.CreditAmount.String(), tx.Ref, tx.CurrCode)
	if err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "insert transaction", Err: err}
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "insert transaction", Err: err}
	}

	if rows > 0 {
		s.logger.Debug("new transaction stored", "seq", tx.Seq, "ref", tx.Ref)
		return true, nil
	}
	return false, nil
}

// AddTransactionsBatch inserts a batch of transactions and returns the
// number of genuinely new natural keys.
func (s *SQLiteStore) AddTransactionsBatch(txs []*models.TransactionRecord) (int, error) {
	newCount := 0
	for _, tx := range txs {
		added, err := s.AddTransaction(tx)
		if err != nil {
			return newCount, err
		}
		if added {
			newCount++
		}
	}
	return newCount, nil
}

// Count returns the total number of stored transactions.
func (s *SQLiteStore) Count() (int64, error) {
	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM processed_transactions").Scan(&count)
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count transactions", Err: err}
	}
	return count, nil
}

// Latest returns the most recently processed transactions, newest first.
func (s *SQLiteStore) Latest(limit int) ([]*models.TransactionRecord, error) {
	rows, err := s.db.Query(`
		SELECT seq, tran_date, remark, debit_amount, credit_amount, ref, curr_code, processed_at
		FROM processed_transactions
		ORDER BY processed_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "latest transactions", Err: err}
	}
	defer rows.Close()

	var out []*models.TransactionRecord
	for rows.Next() {
		var rec models.TransactionRecord
		var debit, credit, processedAt string
		if err := rows.Scan(&rec.Seq, &rec.TranDate, &rec.Remark, &debit, &credit, &rec.Ref, &rec.CurrCode, &processedAt); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan transaction", Err: err}
		}
		rec.DebitAmount = parseAmount(debit)
		rec.CreditAmount = parseAmount(credit)
		if ts, err := time.Parse("2006-01-02 15:04:05", processedAt); err == nil {
			rec.ProcessedAt = ts
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "latest transactions", Err: err}
	}

	return out, nil
}

// parseAmount converts a stored amount, degrading unreadable values to
// zero instead of failing the whole read.
func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
