package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/HerbHall/wlanscan/pkg/plugin"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

var (
	// ErrNewerSchema is returned when the database was last written by a
	// newer wlanscan release than the running binary.
	ErrNewerSchema = errors.New("database was written by a newer version of wlanscan")
	// ErrInvalidVersion is returned for a binary version that is neither
	// "dev" nor a semantic version.
	ErrInvalidVersion = errors.New("invalid version")
	// ErrMigrationOrder is returned when a plugin's migrations are not in
	// strictly ascending Version order.
	ErrMigrationOrder = errors.New("migrations out of order")
)

// DevVersion is the version reported by unreleased builds.
const DevVersion = "dev"

var _ plugin.Store = (*SQLiteStore)(nil)

// pragmas are applied to every connection at open. modernc.org/sqlite takes
// them as statements, not DSN parameters.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA cache_size=-20000",
}

// SQLiteStore is the shared scan database: plugin migrations, scan history
// tables and the log of binary versions that opened it.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu   sync.Mutex // serializes Migrate
	once sync.Once
	err  error // result of creating the bookkeeping tables
}

// New opens (or creates) the database at path. Use ":memory:" for a
// throwaway store. A nil logger discards migration logs.
func New(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One writer; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// DB returns the underlying *sql.DB for direct queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Tx runs fn in a transaction, committing when it returns nil.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// Migrate applies the migrations of pluginName that are not yet recorded.
// Each one commits on its own, so a failure keeps the steps before it.
func (s *SQLiteStore) Migrate(ctx context.Context, pluginName string, migrations []plugin.Migration) error {
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			return fmt.Errorf("%s: version %d after %d: %w",
				pluginName, migrations[i].Version, migrations[i-1].Version, ErrMigrationOrder)
		}
	}
	if err := s.ensureTables(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied, err := s.appliedVersions(ctx, pluginName)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.applyMigration(ctx, pluginName, m); err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", pluginName, m.Version, m.Description, err)
		}
		s.logger.Info("migration applied",
			zap.String("plugin", pluginName),
			zap.Int("version", m.Version),
			zap.String("description", m.Description),
		)
	}
	return nil
}

// SchemaVersion returns the highest migration version recorded for
// pluginName, or 0 when none has run.
func (s *SQLiteStore) SchemaVersion(ctx context.Context, pluginName string) (int, error) {
	if err := s.ensureTables(ctx); err != nil {
		return 0, err
	}
	var v int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(version), 0) FROM _migrations WHERE plugin_name = ?", pluginName,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("schema version of %s: %w", pluginName, err)
	}
	return v, nil
}

// VersionCheck reports what CheckVersion found.
type VersionCheck struct {
	Previous string // last recorded release; empty on a fresh database
	Current  string
	Upgraded bool // Current was newer than Previous and has been recorded
}

// CheckVersion refuses to run a binary older than the newest release that
// has written the database. Every release that opens the database is
// appended to the _app_versions log. A dev build always passes and is only
// recorded on a fresh database, so it never masks the release guard.
func (s *SQLiteStore) CheckVersion(ctx context.Context, current string) (VersionCheck, error) {
	res := VersionCheck{Current: current}
	if current != DevVersion && !semver.IsValid(canonical(current)) {
		return res, fmt.Errorf("%q: %w", current, ErrInvalidVersion)
	}
	if err := s.ensureTables(ctx); err != nil {
		return res, err
	}

	prev, err := s.lastVersion(ctx)
	if err != nil {
		return res, err
	}
	res.Previous = prev

	switch {
	case prev == "":
		return res, s.recordVersion(ctx, current)
	case current == DevVersion:
		return res, nil
	case prev == DevVersion:
		res.Upgraded = true
		return res, s.recordVersion(ctx, current)
	}

	switch c := semver.Compare(canonical(current), canonical(prev)); {
	case c < 0:
		return res, fmt.Errorf("%w: database=%s, binary=%s", ErrNewerSchema, prev, current)
	case c > 0:
		res.Upgraded = true
		return res, s.recordVersion(ctx, current)
	}
	return res, nil
}

func (s *SQLiteStore) lastVersion(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		"SELECT app_version FROM _app_versions ORDER BY id DESC LIMIT 1",
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query app version: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) recordVersion(ctx context.Context, v string) error {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO _app_versions (app_version) VALUES (?)", v,
	); err != nil {
		return fmt.Errorf("record app version %s: %w", v, err)
	}
	return nil
}

// canonical adds the "v" prefix semver expects.
func canonical(v string) string {
	if v != "" && v[0] != 'v' {
		return "v" + v
	}
	return v
}

// ensureTables creates the migration and version logs once per store.
func (s *SQLiteStore) ensureTables(ctx context.Context) error {
	s.once.Do(func() {
		for _, stmt := range []string{
			`CREATE TABLE IF NOT EXISTS _migrations (
				plugin_name TEXT     NOT NULL,
				version     INTEGER  NOT NULL,
				description TEXT     NOT NULL,
				applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (plugin_name, version)
			)`,
			`CREATE TABLE IF NOT EXISTS _app_versions (
				id          INTEGER  PRIMARY KEY AUTOINCREMENT,
				app_version TEXT     NOT NULL,
				recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		} {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				s.err = fmt.Errorf("create bookkeeping tables: %w", err)
				return
			}
		}
	})
	return s.err
}

func (s *SQLiteStore) appliedVersions(ctx context.Context, pluginName string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT version FROM _migrations WHERE plugin_name = ?", pluginName)
	if err != nil {
		return nil, fmt.Errorf("list migrations of %s: %w", pluginName, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration of %s: %w", pluginName, err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (s *SQLiteStore) applyMigration(ctx context.Context, pluginName string, m plugin.Migration) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		if err := m.Up(tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO _migrations (plugin_name, version, description) VALUES (?, ?, ?)",
			pluginName, m.Version, m.Description,
		)
		return err
	})
}
