package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"

	_ "modernc.org/sqlite"
)

// Store is the durable credential store: a sqlite database owned by
// whatsmeow's sqlstore.
type Store struct {
	container *sqlstore.Container
	db        *sql.DB
}

// OpenStore opens (creating if needed) the credential database at path and
// upgrades its schema.
func OpenStore(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open credential store: %w", err)
	}
	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	container := sqlstore.NewWithDB(db, "sqlite3", NewLogger(logger, "store"))
	if err := container.Upgrade(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("credential store migration failed: %w", err)
	}

	return &Store{container: container, db: db}, nil
}

// Device returns the first stored device, or a fresh unpaired one.
func (s *Store) Device(ctx context.Context) (*store.Device, error) {
	device, err := s.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load device: %w", err)
	}
	return device, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
