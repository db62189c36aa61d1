// Package sqlaudit stores analysis audit records in the ai_decisions table of a
// PostgreSQL or SQLite database.
package sqlaudit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	// registers the "postgres" driver
	_ "github.com/lib/pq"
	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/vadiminshakov/marketsignal/internal/domain"
	"github.com/vadiminshakov/marketsignal/pkg/retrier"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	connectRetries = 4
)

type dialect struct {
	driver  string
	numeric string
	integer string
	text    string
}

var dialects = map[string]dialect{
	DriverPostgres: {driver: DriverPostgres, numeric: "DOUBLE PRECISION", integer: "BIGINT", text: "TEXT"},
	DriverSQLite:   {driver: DriverSQLite, numeric: "REAL", integer: "INTEGER", text: "TEXT"},
}

// placeholder returns the n-th (1-based) bind parameter.
func (d dialect) placeholder(n int) string {
	if d.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d dialect) placeholders(count int) string {
	ph := make([]string, count)
	for i := range ph {
		ph[i] = d.placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

// Store persists audit records through database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.Logger
}

// Open connects to the database, waiting for it to accept connections, and
// creates the ai_decisions table when missing.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, errors.Errorf("unsupported audit driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}

	if driver == DriverSQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	r := retrier.New(
		retrier.WithMaxRetries(connectRetries),
		retrier.WithInitialInterval(500*time.Millisecond),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Warn("audit database not ready", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}),
	)
	if err := r.Do(ctx, db.PingContext); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}

	s := &Store{db: db, dialect: d, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	logger.Info("audit database opened", zap.String("driver", driver))

	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if s.dialect.driver == DriverSQLite {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return errors.Wrap(err, "set WAL mode")
		}
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ai_decisions (
			id                %[3]s PRIMARY KEY,
			symbol            VARCHAR(32) NOT NULL,
			action            VARCHAR(16) NOT NULL,
			confidence        %[1]s NOT NULL,
			risk_level        VARCHAR(16) NOT NULL,
			models_used       %[3]s NOT NULL,
			execution_time_ms %[2]s NOT NULL,
			metadata          %[3]s NOT NULL,
			created_at        %[2]s NOT NULL
		)`, s.dialect.numeric, s.dialect.integer, s.dialect.text),
		`CREATE INDEX IF NOT EXISTS idx_ai_decisions_created_at ON ai_decisions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_decisions_symbol ON ai_decisions(symbol)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "exec %q", firstLine(stmt))
		}
	}

	return nil
}

// Save inserts the audit record.
func (s *Store) Save(ctx context.Context, record domain.AuditRecord) error {
	models, err := json.Marshal(record.ModelsUsed)
	if err != nil {
		return errors.Wrap(err, "marshal models_used")
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return errors.Wrap(err, "marshal metadata")
	}

	query := fmt.Sprintf(`INSERT INTO ai_decisions
		(id, symbol, action, confidence, risk_level, models_used, execution_time_ms, metadata, created_at)
		VALUES (%s)`, s.dialect.placeholders(9))

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.Symbol,
		string(record.Action),
		record.Confidence,
		string(record.RiskLevel),
		string(models),
		record.ExecutionTimeMs,
		string(metadata),
		record.Timestamp.UnixMilli(),
	)

	return errors.Wrap(err, "insert audit record")
}

// Recent returns up to limit of the newest audit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	query := fmt.Sprintf(`SELECT id, symbol, action, confidence, risk_level, models_used, execution_time_ms, metadata, created_at
		FROM ai_decisions ORDER BY created_at DESC, id DESC LIMIT %s`, s.dialect.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query recent audit records")
	}
	defer rows.Close()

	records := make([]domain.AuditRecord, 0, limit)
	for rows.Next() {
		var (
			record           domain.AuditRecord
			action, risk     string
			models, metadata string
			createdAtMillis  int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.Symbol,
			&action,
			&record.Confidence,
			&risk,
			&models,
			&record.ExecutionTimeMs,
			&metadata,
			&createdAtMillis,
		); err != nil {
			return nil, errors.Wrap(err, "scan audit record")
		}

		if err := json.Unmarshal([]byte(models), &record.ModelsUsed); err != nil {
			return nil, errors.Wrapf(err, "decode models_used of %s", record.ID)
		}
		if err := json.Unmarshal([]byte(metadata), &record.Metadata); err != nil {
			return nil, errors.Wrapf(err, "decode metadata of %s", record.ID)
		}
		record.Action = domain.Action(action)
		record.RiskLevel = domain.RiskLevel(risk)
		record.Timestamp = time.UnixMilli(createdAtMillis).UTC()

		records = append(records, record)
	}

	return records, errors.Wrap(rows.Err(), "iterate audit records")
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stmt), "\n")
	return line
}
