// Package store persists projected records into a PostGIS table whose layout
// is derived from a schema.TypeSchema.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/sells-group/acled-ingest/internal/db"
	"github.com/sells-group/acled-ingest/internal/ingest"
	"github.com/sells-group/acled-ingest/internal/schema"
)

// ErrMissingField is returned when a record lacks a field the schema declares.
var ErrMissingField = errors.New("store: missing field")

// PostgresStore creates the destination table and inserts record batches.
// Each operation dials its own connection and closes it before returning.
type PostgresStore struct {
	schema string
	table  string
	types  *schema.TypeSchema
	dial   db.Dialer

	createSchemaSQL string
	createTableSQL  string
	insertSQL       string
}

var _ ingest.Sink = (*PostgresStore)(nil)

// NewPostgres creates a PostgresStore writing to schemaName.table. The
// statements are derived once from types; the geometry constraint of types
// is checked by Init and Save.
func NewPostgres(schemaName, table string, types *schema.TypeSchema, dial db.Dialer) (*PostgresStore, error) {
	if schemaName == "" || table == "" {
		return nil, eris.New("store: schema and table are required")
	}
	if types == nil || types.Len() == 0 {
		return nil, eris.New("store: type schema has no fields")
	}
	if dial == nil {
		return nil, eris.New("store: dialer is required")
	}
	s := &PostgresStore{
		schema: schemaName,
		table:  table,
		types:  types,
		dial:   dial,
	}
	s.createSchemaSQL = "CREATE SCHEMA IF NOT EXISTS " + db.QuoteIdent(schemaName)
	s.createTableSQL = buildCreateTable(schemaName, table, types)
	s.insertSQL = buildInsert(schemaName, table, types)
	return s, nil
}

// Schema returns the destination schema name.
func (s *PostgresStore) Schema() string { return s.schema }

// Table returns the destination table name.
func (s *PostgresStore) Table() string { return s.table }

// CreateSchemaSQL returns the CREATE SCHEMA statement run by Init.
func (s *PostgresStore) CreateSchemaSQL() string { return s.createSchemaSQL }

// CreateTableSQL returns the CREATE TABLE statement run by Init.
func (s *PostgresStore) CreateTableSQL() string { return s.createTableSQL }

// InsertSQL returns the parameterized INSERT statement run once per record.
func (s *PostgresStore) InsertSQL() string { return s.insertSQL }

// Init creates the destination schema and table if they do not exist.
func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.types.GeometryField(); err != nil {
		return eris.Wrap(err, "store: init")
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return eris.Wrap(err, "store: init")
	}
	defer closeConn(ctx, conn)

	if _, err := conn.Exec(ctx, s.createSchemaSQL); err != nil {
		return eris.Wrapf(err, "store: create schema %s", s.schema)
	}
	if _, err := conn.Exec(ctx, s.createTableSQL); err != nil {
		return eris.Wrapf(err, "store: create table %s.%s", s.schema, s.table)
	}

	zap.L().Debug("store: table ready",
		zap.String("schema", s.schema),
		zap.String("table", s.table),
		zap.Int("columns", s.types.Len()),
	)
	return nil
}

// Save inserts records in a single transaction. An empty batch is a no-op.
// Every record is converted before a connection is opened, so a malformed
// record fails the call without touching the database.
func (s *PostgresStore) Save(ctx context.Context, records []schema.Record) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := s.types.GeometryField(); err != nil {
		return eris.Wrap(err, "store: save")
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		row, err := s.values(rec)
		if err != nil {
			return eris.Wrapf(err, "store: record %d", i)
		}
		rows[i] = row
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return eris.Wrap(err, "store: save")
	}
	defer closeConn(ctx, conn)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for i, row := range rows {
		if _, err := tx.Exec(ctx, s.insertSQL, row...); err != nil {
			return eris.Wrapf(err, "store: insert record %d into %s.%s", i, s.schema, s.table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "store: commit tx")
	}
	return nil
}

// values returns the bound parameters for rec in column order.
func (s *PostgresStore) values(rec schema.Record) ([]any, error) {
	out := make([]any, 0, s.types.Len())
	for name, typ := range s.types.All() {
		raw, ok := rec[name]
		if !ok {
			return nil, eris.Wrapf(ErrMissingField, "store: field %q", name)
		}
		v, err := coerce(typ, raw)
		if err != nil {
			return nil, eris.Wrapf(err, "store: field %q", name)
		}
		out = append(out, v)
	}
	return out, nil
}

// coerce converts a raw decoded value into the Go type bound for typ.
func coerce(typ schema.ValueType, raw any) (any, error) {
	switch typ {
	case schema.Integer:
		return toInt64(raw)
	case schema.Float:
		return cast.ToFloat32E(raw)
	case schema.Point:
		g, ok := raw.(string)
		if !ok {
			return nil, eris.Errorf("store: geometry must be hex EWKB, got %T", raw)
		}
		return g, nil
	default:
		return cast.ToStringE(raw)
	}
}

// toInt64 reads strings as base 10 so zero-padded values like "08" parse.
func toInt64(raw any) (int64, error) {
	s, ok := raw.(string)
	if !ok {
		return cast.ToInt64E(raw)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "store: %q is not an integer", s)
	}
	return n, nil
}

func buildCreateTable(schemaName, table string, types *schema.TypeSchema) string {
	cols := make([]string, 0, types.Len())
	for name, typ := range types.All() {
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL", db.QuoteIdent(name), schema.ColumnType(typ)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		db.QualifiedTable(schemaName, table),
		strings.Join(cols, ", "),
	)
}

func buildInsert(schemaName, table string, types *schema.TypeSchema) string {
	exprs := make([]string, 0, types.Len())
	n := 0
	for _, typ := range types.All() {
		n++
		if typ == schema.Point {
			exprs = append(exprs, fmt.Sprintf("ST_SETSRID($%d::geometry, %d)", n, schema.SRID))
			continue
		}
		exprs = append(exprs, fmt.Sprintf("$%d", n))
	}
	return fmt.Sprintf("INSERT INTO %s(%s) VALUES (%s)",
		db.QualifiedTable(schemaName, table),
		db.QuoteAndJoin(types.Names(), ","),
		strings.Join(exprs, ","),
	)
}

func closeConn(ctx context.Context, conn db.Conn) {
	if err := conn.Close(ctx); err != nil {
		zap.L().Warn("store: close connection", zap.Error(err))
	}
}
