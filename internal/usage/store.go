package usage

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var fs embed.FS

// Store persists usage records in SQLite.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	TotalsSince(ctx context.Context, since time.Time) ([]Totals, error)
	Close() error
}

type sqliteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(dsn string) (Store, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return err
	}

	d, err := iofs.New(fs, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

func (s *sqliteStore) Insert(ctx context.Context, rec *Record) error {
	query := `
	INSERT INTO usage_records (id, kind, model_id, provider_id, owner, prompt_tokens, completion_tokens, latency_ms, status_code, streamed, created_at)
	VALUES (:id, :kind, :model_id, :provider_id, :owner, :prompt_tokens, :completion_tokens, :latency_ms, :status_code, :streamed, :created_at)`
	_, err := s.db.NamedExecContext(ctx, query, rec)
	return err
}

func (s *sqliteStore) TotalsSince(ctx context.Context, since time.Time) ([]Totals, error) {
	var out []Totals
	query := `
	SELECT kind, COUNT(*) AS requests
	FROM usage_records
	WHERE created_at >= ?
	GROUP BY kind`
	if err := s.db.SelectContext(ctx, &out, query, since); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
