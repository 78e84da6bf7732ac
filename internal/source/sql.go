package source

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sre-cli/internal/resilience"
)

// SQLiteSource runs a SELECT against a SQLite database. Every selected
// column becomes a variable or response; NULL is missing.
type SQLiteSource struct {
	DSN  string
	DB   *sql.DB // optional; opened from DSN when nil
	Opts Options
}

// NewSQLite creates a SQLite query source.
func NewSQLite(dsn string, opts Options) *SQLiteSource {
	return &SQLiteSource{DSN: dsn, Opts: opts}
}

// Load implements ObservationSource.
func (s *SQLiteSource) Load(ctx context.Context) (*Dataset, error) {
	if s.Opts.Query == "" {
		return nil, eris.New("source: sqlite source needs a query")
	}

	db := s.DB
	if db == nil {
		opened, err := sql.Open("sqlite", s.DSN)
		if err != nil {
			return nil, eris.Wrap(err, "source: sqlite open")
		}
		defer func() { _ = opened.Close() }()
		db = opened
	}

	rows, err := db.QueryContext(ctx, s.Opts.Query)
	if err != nil {
		return nil, eris.Wrap(err, "source: sqlite query")
	}
	defer func() { _ = rows.Close() }()

	header, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "source: sqlite columns")
	}

	var records [][]string
	for rows.Next() {
		raw := make([]any, len(header))
		ptrs := make([]any, len(header))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "source: sqlite scan")
		}
		rec := make([]string, len(raw))
		for i, v := range raw {
			rec[i] = formatCell(v)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: sqlite rows")
	}

	ds, err := buildDataset(header, records, s.Opts)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("source: loaded sqlite query", zap.Int("rows", len(records)), zap.Strings("columns", header))
	return ds, nil
}

// Querier is the subset of a pgx pool or connection used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Connector opens a Querier for a DSN. The returned func releases it.
type Connector func(ctx context.Context, dsn string) (Querier, func(), error)

func connectPgx(ctx context.Context, dsn string) (Querier, func(), error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return conn, func() { _ = conn.Close(context.Background()) }, nil
}

// PostgresSource runs a SELECT against PostgreSQL.
type PostgresSource struct {
	DSN     string
	Pool    Querier   // optional; a connection is opened from DSN when nil
	Connect Connector // defaults to pgx.Connect
	Retry   resilience.RetryConfig
	Args    []any
	Opts    Options
}

// NewPostgres creates a PostgreSQL query source that retries transient
// connection failures.
func NewPostgres(dsn string, opts Options) *PostgresSource {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres", "connect")
	return &PostgresSource{DSN: dsn, Opts: opts, Retry: retry}
}

// Load implements ObservationSource.
func (s *PostgresSource) Load(ctx context.Context) (*Dataset, error) {
	if s.Opts.Query == "" {
		return nil, eris.New("source: postgres source needs a query")
	}

	q := s.Pool
	if q == nil {
		connect := s.Connect
		if connect == nil {
			connect = connectPgx
		}
		type opened struct {
			q     Querier
			close func()
		}
		c, err := resilience.DoVal(ctx, s.Retry, func(ctx context.Context) (opened, error) {
			conn, closeFn, err := connect(ctx, s.DSN)
			return opened{conn, closeFn}, err
		})
		if err != nil {
			return nil, eris.Wrap(err, "source: postgres connect")
		}
		if c.close != nil {
			defer c.close()
		}
		q = c.q
	}

	rows, err := q.Query(ctx, s.Opts.Query, s.Args...)
	if err != nil {
		return nil, eris.Wrap(err, "source: postgres query")
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	header := make([]string, len(descs))
	for i, d := range descs {
		header[i] = d.Name
	}

	var records [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "source: postgres values")
		}
		rec := make([]string, len(values))
		for i, v := range values {
			rec[i] = formatCell(pgValue(v))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: postgres rows")
	}

	ds, err := buildDataset(header, records, s.Opts)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("source: loaded postgres query", zap.Int("rows", len(records)), zap.Strings("columns", header))
	return ds, nil
}

// pgValue unwraps pgx types that have no plain Go equivalent.
func pgValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}
