package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/xbuild/xbuild/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	// Every connection to :memory: is a separate database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Ensure foreign keys are enabled (connection-level setting)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	// Create migration source from embedded FS
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// Create database driver
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Create migration instance
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	// Run migrations
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SavePlan stores a resolved plan and one summary row per configuration in
// a single transaction. It implements engine.PlanStore.
func (s *SQLiteStore) SavePlan(ctx context.Context, plan *engine.PlanSnapshot) error {
	if plan == nil || plan.RunID == "" {
		return fmt.Errorf("plan with a run ID is required")
	}

	snapshot, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, project, folder, generator, status, error, snapshot, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?)
	`,
		plan.RunID,
		plan.Project,
		plan.Folder,
		plan.Generator,
		RunStatusResolved,
		string(snapshot),
		plan.ResolvedAt.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for i := range plan.Configurations {
		c := &plan.Configurations[i]
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode configuration %s: %w", c.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO configurations (run_id, name, target, toolchain, tool, artefact, source_count, snapshot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			plan.RunID,
			c.Name,
			c.Target,
			c.Toolchain,
			c.Tool.Name,
			c.Artefact.FullName,
			len(c.SourceFolders),
			string(data),
		)
		if err != nil {
			return fmt.Errorf("failed to create configuration %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan: %w", err)
	}
	return nil
}

// SaveFailure records a run whose resolution failed.
func (s *SQLiteStore) SaveFailure(ctx context.Context, run *Run) error {
	now := time.Now().UTC()
	if run.ResolvedAt.IsZero() {
		run.ResolvedAt = now
	}
	run.CreatedAt = now
	run.Status = RunStatusFailed
	if run.Snapshot == "" {
		run.Snapshot = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, project, folder, generator, status, error, snapshot, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Project,
		run.Folder,
		run.Generator,
		run.Status,
		run.Error,
		run.Snapshot,
		run.ResolvedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

const runColumns = `id, project, folder, generator, status, error, snapshot, resolved_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID,
		&run.Project,
		&run.Folder,
		&run.Generator,
		&run.Status,
		&run.Error,
		&run.Snapshot,
		&run.ResolvedAt,
		&run.CreatedAt,
	)
	return run, err
}

// GetRun retrieves a run by ID
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetPlan returns the plan snapshot stored by a run.
func (s *SQLiteStore) GetPlan(ctx context.Context, runID string) (*engine.PlanSnapshot, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return decodePlan(run)
}

// LatestPlan returns the most recently resolved plan of a project. Failed
// runs are skipped. It implements engine.PlanStore.
func (s *SQLiteStore) LatestPlan(ctx context.Context, project string) (*engine.PlanSnapshot, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE project = ? AND status = ?
		ORDER BY resolved_at DESC, created_at DESC
		LIMIT 1
	`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, project, RunStatusResolved))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no resolved plan for project %s", ErrRunNotFound, project)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return decodePlan(run)
}

func decodePlan(run *Run) (*engine.PlanSnapshot, error) {
	if run.Status != RunStatusResolved {
		return nil, fmt.Errorf("run %s has no plan, status %s", run.ID, run.Status)
	}
	plan := &engine.PlanSnapshot{}
	if err := json.Unmarshal([]byte(run.Snapshot), plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan of run %s: %w", run.ID, err)
	}
	return plan, nil
}

// ListRuns lists runs, newest first, optionally restricted to a project.
func (s *SQLiteStore) ListRuns(ctx context.Context, project string, limit, offset int) ([]*Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE (? = '' OR project = ?)
		ORDER BY resolved_at DESC, created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, project, project, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run and its configurations
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return nil
}

const configurationColumns = `run_id, name, target, toolchain, tool, artefact, source_count, snapshot`

func (s *SQLiteStore) queryConfigurations(ctx context.Context, query string, args ...any) ([]*ConfigurationRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer rows.Close()

	records := []*ConfigurationRecord{}
	for rows.Next() {
		rec := &ConfigurationRecord{}
		err := rows.Scan(
			&rec.RunID,
			&rec.Name,
			&rec.Target,
			&rec.Toolchain,
			&rec.Tool,
			&rec.Artefact,
			&rec.SourceCount,
			&rec.Snapshot,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating configurations: %w", err)
	}

	return records, nil
}

// ListConfigurations lists the configurations of a run, sorted by name.
func (s *SQLiteStore) ListConfigurations(ctx context.Context, runID string) ([]*ConfigurationRecord, error) {
	return s.queryConfigurations(ctx,
		`SELECT `+configurationColumns+` FROM configurations WHERE run_id = ? ORDER BY name`,
		runID,
	)
}

// FindByToolchain lists the most recent configurations resolved with a
// toolchain.
func (s *SQLiteStore) FindByToolchain(ctx context.Context, toolchain string, limit int) ([]*ConfigurationRecord, error) {
	return s.queryConfigurations(ctx, `
		SELECT c.run_id, c.name, c.target, c.toolchain, c.tool, c.artefact, c.source_count, c.snapshot
		FROM configurations c
		JOIN runs r ON r.id = c.run_id
		WHERE c.toolchain = ?
		ORDER BY r.resolved_at DESC, c.name
		LIMIT ?
	`, toolchain, limit)
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
