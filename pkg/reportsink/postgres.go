package reportsink

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/pkg/errors"
	"github.com/ajitpratap0/tripflow/pkg/json"
	"github.com/ajitpratap0/tripflow/pkg/logger"
	"github.com/ajitpratap0/tripflow/pkg/models"
)

// DefaultTable is the run ledger table name.
const DefaultTable = "tripflow_runs"

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres inserts one ledger row per run.
type Postgres struct {
	db     execer
	table  string
	closer func()
	logger *zap.Logger
}

// NewPostgres connects to dsn and creates the ledger table if absent.
func NewPostgres(ctx context.Context, dsn, table string, log *zap.Logger) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse ledger connection string")
	}
	config.MaxConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to create ledger connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "ledger database unreachable")
	}

	p := newPostgres(pool, table, pool.Close, log)
	if err := p.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	p.logger.Info("run ledger ready", zap.String("table", p.table), zap.String("host", config.ConnConfig.Host))
	return p, nil
}

func newPostgres(db execer, table string, closer func(), log *zap.Logger) *Postgres {
	if table == "" {
		table = DefaultTable
	}
	return &Postgres{
		db:     db,
		table:  pgx.Identifier{table}.Sanitize(),
		closer: closer,
		logger: logger.OrNop(log).With(zap.String("component", "ledger")),
	}
}

func (p *Postgres) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id             BIGSERIAL PRIMARY KEY,
	run_id         TEXT NOT NULL,
	year           INTEGER NOT NULL,
	month          INTEGER NOT NULL,
	status         TEXT NOT NULL,
	stage          TEXT NOT NULL,
	rows_read      BIGINT NOT NULL,
	rows_written   BIGINT NOT NULL,
	rows_dropped   BIGINT NOT NULL,
	drops          JSONB NOT NULL,
	output_paths   JSONB NOT NULL,
	published_uris JSONB,
	cache_hit      BOOLEAN NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	elapsed_ms     BIGINT NOT NULL,
	error_kind     TEXT,
	error          TEXT
)`, p.table)
	if _, err := p.db.Exec(ctx, ddl); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to create ledger table")
	}
	return nil
}

// Record inserts report.
func (p *Postgres) Record(ctx context.Context, r *models.RunReport) error {
	drops, err := json.Marshal(r.Drops)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode drop counters")
	}
	paths, err := json.Marshal(nonNil(r.OutputPaths))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode output paths")
	}
	var published []byte
	if len(r.PublishedURIs) > 0 {
		if published, err = json.Marshal(r.PublishedURIs); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode published uris")
		}
	}

	query := fmt.Sprintf(`INSERT INTO %s (run_id, year, month, status, stage, rows_read, rows_written,
	rows_dropped, drops, output_paths, published_uris, cache_hit, started_at, elapsed_ms, error_kind, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, p.table)

	_, err = p.db.Exec(ctx, query,
		r.RunID, r.Unit.Year, r.Unit.Month, string(r.Status), string(r.Stage),
		r.RowsRead, r.RowsWritten, r.RowsDropped,
		string(drops), string(paths), nullable(string(published)),
		r.CacheHit, r.StartedAt, r.Elapsed.Milliseconds(),
		nullable(r.ErrorKind), nullable(r.Error))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to insert run report").
			WithDetail("work_unit", r.Unit.String())
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	if p.closer != nil {
		p.closer()
		p.closer = nil
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
