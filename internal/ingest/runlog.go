package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acled-ingest/internal/db"
)

// RunLog records pipeline runs in <schema>.ingest_runs.
type RunLog struct {
	dial   db.Dialer
	table  string // quoted, schema-qualified
	schema string
	source string
}

// NewRunLog creates a RunLog writing to schemaName.ingest_runs. source names
// the upstream dataset (e.g. "acled").
func NewRunLog(schemaName, source string, dial db.Dialer) *RunLog {
	return &RunLog{
		dial:   dial,
		table:  db.QualifiedTable(schemaName, "ingest_runs"),
		schema: schemaName,
		source: source,
	}
}

// CreateTableSQL returns the DDL run by Init.
func (l *RunLog) CreateTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id           UUID PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	batches      BIGINT NOT NULL DEFAULT 0,
	rows_synced  BIGINT NOT NULL DEFAULT 0,
	error        TEXT
)`, l.table)
}

// Init creates the schema and run table if needed.
func (l *RunLog) Init(ctx context.Context) error {
	return l.withConn(ctx, "init", func(conn db.Conn) error {
		if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+db.QuoteIdent(l.schema)); err != nil {
			return err
		}
		_, err := conn.Exec(ctx, l.CreateTableSQL())
		return err
	})
}

// Start records the beginning of a run and returns its ID.
func (l *RunLog) Start(ctx context.Context) (string, error) {
	id := uuid.New().String()
	err := l.exec(ctx, "start",
		fmt.Sprintf(`INSERT INTO %s (id, source, status, started_at) VALUES ($1, $2, 'running', now())`, l.table),
		id, l.source,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Complete marks a run as successfully completed.
func (l *RunLog) Complete(ctx context.Context, res *Result) error {
	return l.exec(ctx, "complete",
		fmt.Sprintf(`UPDATE %s SET status = 'complete', completed_at = now(), batches = $1, rows_synced = $2 WHERE id = $3`, l.table),
		res.Batches, res.Rows, res.RunID,
	)
}

// Fail marks a run as failed with an error message.
func (l *RunLog) Fail(ctx context.Context, res *Result, errMsg string) error {
	return l.exec(ctx, "fail",
		fmt.Sprintf(`UPDATE %s SET status = 'failed', completed_at = now(), batches = $1, rows_synced = $2, error = $3 WHERE id = $4`, l.table),
		res.Batches, res.Rows, errMsg, res.RunID,
	)
}

func (l *RunLog) exec(ctx context.Context, op string, sql string, args ...any) error {
	return l.withConn(ctx, op, func(conn db.Conn) error {
		_, err := conn.Exec(ctx, sql, args...)
		return err
	})
}

// withConn dials a fresh connection for fn and closes it afterwards.
func (l *RunLog) withConn(ctx context.Context, op string, fn func(db.Conn) error) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return eris.Wrapf(err, "runlog: %s", op)
	}
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil {
			zap.L().Warn("runlog: close connection", zap.Error(cerr))
		}
	}()

	if err := fn(conn); err != nil {
		return eris.Wrapf(err, "runlog: %s", op)
	}
	return nil
}
