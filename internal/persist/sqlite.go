package persist

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cart_sync/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLitePersister keeps the engine state as a single JSON row in an embedded
// sqlite database, so the cart works fully offline.
type SQLitePersister struct {
	db         *sqlx.DB
	storageKey string
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if errMigrate := runMigrations(db.DB); errMigrate != nil {
		db.Close()
		return nil, errMigrate
	}
	return db, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not load embedded migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("could not create sqlite migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func NewSQLitePersister(db *sqlx.DB, storageKey string) *SQLitePersister {
	return &SQLitePersister{db: db, storageKey: storageKey}
}

func (p *SQLitePersister) Load(ctx context.Context) (*domain.PersistedState, error) {
	var payload string
	err := p.db.GetContext(ctx, &payload,
		`SELECT payload FROM cart_state WHERE storage_key = ?`, p.storageKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite load failed: %w", err)
	}

	var state domain.PersistedState
	if e2 := json.Unmarshal([]byte(payload), &state); e2 != nil {
		return nil, fmt.Errorf("unmarshal cart state failed: %w", e2)
	}
	return &state, nil
}

func (p *SQLitePersister) Save(ctx context.Context, state *domain.PersistedState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal cart state failed: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO cart_state (storage_key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(storage_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		p.storageKey, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite save failed: %w", err)
	}
	return nil
}
