// Package store persists rate limit counters in libsql (local SQLite files or
// remote Turso databases).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/ecoguard/ecoguard/internal/config"
)

const driverLibsql = "libsql"

// ErrNotInitialized is returned by methods called on a nil or closed Store.
var ErrNotInitialized = errors.New("store is not initialized")

// Store wraps the database connection used for rate limit state.
type Store struct {
	DB     *sql.DB
	driver string

	// hitMu serializes read-modify-write transactions.
	hitMu sync.Mutex
}

// dataSource is a resolved libsql connection string.
type dataSource struct {
	dsn string
	// local sources are files or :memory:, which tolerate one writer.
	local bool
}

// Open connects to the configured database and verifies it answers.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = driverLibsql
	}
	if driver != driverLibsql {
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	src, err := resolveDataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, src.dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if src.local {
		// :memory: databases are per-connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}

	return &Store{DB: db, driver: driver}, nil
}

// OpenMigrated opens the store and applies the schema.
func OpenMigrated(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	return s.DB.PingContext(ctx)
}

// resolveDataSource prefers store.url (remote Turso, with auth token) over
// store.path. Plain paths become file: DSNs and get their directory created.
func resolveDataSource(cfg config.StoreConfig) (dataSource, error) {
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		dsn, err := withAuthToken(raw, cfg.AuthToken)
		return dataSource{dsn: dsn}, err
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return dataSource{}, errors.New("store path or url is required")
	case path == ":memory:":
		return dataSource{dsn: path, local: true}, nil
	case strings.HasPrefix(path, "libsql:"):
		return dataSource{dsn: path}, nil
	case strings.HasPrefix(path, "file:"):
		parsed, err := url.Parse(path)
		if err != nil {
			return dataSource{}, fmt.Errorf("invalid store path: %w", err)
		}
		local := parsed.Path
		if local == "" {
			local = parsed.Opaque
		}
		if err := ensureParentDir(strings.TrimPrefix(local, "//")); err != nil {
			return dataSource{}, err
		}
		return dataSource{dsn: path, local: true}, nil
	default:
		if err := ensureParentDir(path); err != nil {
			return dataSource{}, err
		}
		return dataSource{dsn: "file:" + filepath.Clean(path), local: true}, nil
	}
}

func withAuthToken(dsn, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") != "" {
		return dsn, nil
	}
	query.Set("authToken", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if path == "" || dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
