package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/resilience"
)

const schema = `CREATE TABLE IF NOT EXISTS benchmark_results (
	id           BIGSERIAL PRIMARY KEY,
	report       TEXT NOT NULL,
	experiment   TEXT NOT NULL,
	algorithm    TEXT NOT NULL,
	value        BIGINT NOT NULL,
	config       JSONB NOT NULL,
	matchability DOUBLE PRECISION,
	recorded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertRow = `INSERT INTO benchmark_results
	(report, experiment, algorithm, value, config, matchability)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Store writes report rows to the benchmark_results table, one transaction
// per batch.
type Store struct {
	db     *postgres.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewStore creates the results table if needed.
func NewStore(ctx context.Context, db *postgres.Client) (*Store, error) {
	if err := db.Migrate(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrating benchmark_results: %w", err)
	}
	return &Store{
		db: db,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
		},
		logger: slog.Default().With("component", "report-store"),
	}, nil
}

func (s *Store) Write(ctx context.Context, file string, header []string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	reportName := strings.TrimSuffix(file, ".csv")
	configs := make([][]byte, len(rows))
	for i, r := range rows {
		b, err := configJSON(header, r.Config)
		if err != nil {
			return err
		}
		configs[i] = b
	}

	err := resilience.Retry(ctx, "report-store-write", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, insertRow)
			if err != nil {
				return fmt.Errorf("preparing insert: %w", err)
			}
			defer stmt.Close()
			for i, r := range rows {
				var matchability sql.NullFloat64
				if r.Matchability != nil {
					matchability = sql.NullFloat64{Float64: *r.Matchability, Valid: true}
				}
				if _, err := stmt.ExecContext(ctx, reportName, r.Experiment, r.Algorithm, r.Value, configs[i], matchability); err != nil {
					return fmt.Errorf("inserting row %d: %w", i, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("writing %s to postgres: %w", reportName, err)
	}
	s.logger.Debug("report rows stored", "report", reportName, "rows", len(rows))
	return nil
}

// configJSON pairs config values with the header's config columns, which
// follow the three leading EXPERIMENT, ALGO and TIME columns.
func configJSON(header []string, values []string) ([]byte, error) {
	obj := make(map[string]string, len(values))
	for i, v := range values {
		key := fmt.Sprintf("col_%d", i)
		if i+3 < len(header) {
			key = header[i+3]
		}
		obj[key] = v
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return b, nil
}
