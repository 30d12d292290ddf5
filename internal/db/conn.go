// Package db provides connection setup and SQL identifier helpers for PostgreSQL.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Conn is the subset of *pgx.Conn used by the store. It is satisfied by
// *pgx.Conn and by pgxmock connections.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Dialer opens a new connection. Callers own the connection and must close it.
type Dialer func(ctx context.Context) (Conn, error)

// ConnectionParams identifies the target database.
type ConnectionParams struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"name" mapstructure:"name"`
}

// ConnConfig builds a pgx connection config from p. Empty fields keep the
// libpq defaults (PGHOST, PGPORT, ... environment variables).
func (p ConnectionParams) ConnConfig() (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig("")
	if err != nil {
		return nil, eris.Wrap(err, "db: parse config")
	}
	if p.Host != "" {
		cfg.Host = p.Host
	}
	if p.Port > 0 {
		if p.Port > 65535 {
			return nil, eris.Errorf("db: invalid port %d", p.Port)
		}
		cfg.Port = uint16(p.Port)
	}
	if p.User != "" {
		cfg.User = p.User
	}
	if p.Password != "" {
		cfg.Password = p.Password
	}
	if p.Database != "" {
		cfg.Database = p.Database
	}
	return cfg, nil
}

// Dial returns a Dialer that opens a fresh connection for p on every call.
func Dial(p ConnectionParams) Dialer {
	return func(ctx context.Context) (Conn, error) {
		cfg, err := p.ConnConfig()
		if err != nil {
			return nil, err
		}
		conn, err := pgx.ConnectConfig(ctx, cfg)
		if err != nil {
			return nil, eris.Wrapf(err, "db: connect to %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
		}
		return conn, nil
	}
}
