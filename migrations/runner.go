package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Migration is one versioned SQL file pair loaded from an embedded
// filesystem.
type Migration struct {
	Version   string
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
}

// Runner applies Rover's embedded migrations against a sqlite3
// database. Rover only ever ships the sqlite3 driver (see
// cmd/rover's openDatabase), so unlike the teacher's Runner this one
// doesn't branch on dialect — every statement uses sqlite3's
// supported $N placeholder style and every migration runs inside a
// transaction, which sqlite3 handles fine for DDL.
type Runner struct {
	DB    *sql.DB
	FS    embed.FS
	Table string
}

// NewRunner creates a migration runner reading migrationFS, tracking
// applied versions in a rover_migrations table.
func NewRunner(db *sql.DB, migrationFS embed.FS) *Runner {
	return &Runner{
		DB:    db,
		FS:    migrationFS,
		Table: "rover_migrations",
	}
}

func (r *Runner) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`, r.Table)

	_, err := r.DB.ExecContext(ctx, query)
	return err
}

// getAppliedMigrations returns the migrations already recorded in the
// tracking table.
func (r *Runner) getAppliedMigrations(ctx context.Context) (map[string]Migration, error) {
	query := fmt.Sprintf("SELECT version, name, applied_at FROM %s ORDER BY version", r.Table)

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.AppliedAt); err != nil {
			return nil, err
		}
		applied[m.Version] = m
	}

	return applied, rows.Err()
}

// loadMigrations reads every {version}_{name}.{up|down}.sql file from
// the embedded filesystem and pairs up/down files by version.
func (r *Runner) loadMigrations() ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(r.FS, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".sql") {
			return nil
		}

		base := filepath.Base(path)
		parts := strings.Split(base, "_")
		if len(parts) < 2 {
			return nil
		}

		version := parts[0]
		remaining := strings.Join(parts[1:], "_")
		var name, direction string

		if strings.HasSuffix(remaining, ".up.sql") {
			name = strings.TrimSuffix(remaining, ".up.sql")
			direction = "up"
		} else if strings.HasSuffix(remaining, ".down.sql") {
			name = strings.TrimSuffix(remaining, ".down.sql")
			direction = "down"
		} else {
			return nil
		}

		content, err := fs.ReadFile(r.FS, path)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", path, err)
		}

		var migration *Migration
		for i := range migrations {
			if migrations[i].Version == version {
				migration = &migrations[i]
				break
			}
		}

		if migration == nil {
			migrations = append(migrations, Migration{Version: version, Name: name})
			migration = &migrations[len(migrations)-1]
		}

		if direction == "up" {
			migration.UpSQL = string(content)
		} else {
			migration.DownSQL = string(content)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Migrate applies every pending migration in version order.
func (r *Runner) Migrate(ctx context.Context) error {
	if err := r.ensureTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := r.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("getting applied migrations: %w", err)
	}

	migrations, err := r.loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	for _, migration := range migrations {
		if _, exists := applied[migration.Version]; exists {
			continue
		}
		if migration.UpSQL == "" {
			continue
		}

		if err := r.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("applying migration %s_%s: %w",
				migration.Version, migration.Name, err)
		}

		log.Printf("Migrations: applied %s_%s", migration.Version, migration.Name)
	}

	return nil
}

func (r *Runner) applyMigration(ctx context.Context, migration Migration) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, migration.UpSQL); err != nil {
		return fmt.Errorf("executing migration SQL: %w", err)
	}

	recordQuery := fmt.Sprintf(
		"INSERT INTO %s (version, name, applied_at) VALUES ($1, $2, $3)",
		r.Table,
	)
	if _, err = tx.ExecContext(ctx, recordQuery, migration.Version, migration.Name, time.Now()); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Status reports which migrations have been applied and which are
// still pending, for `rover migrate status`.
func (r *Runner) Status(ctx context.Context) (applied, pending []string, err error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, nil, fmt.Errorf("creating migrations table: %w", err)
	}

	appliedMap, err := r.getAppliedMigrations(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("getting applied migrations: %w", err)
	}

	migrations, err := r.loadMigrations()
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	for _, migration := range migrations {
		name := fmt.Sprintf("%s_%s", migration.Version, migration.Name)

		if _, exists := appliedMap[migration.Version]; exists {
			applied = append(applied, name)
		} else if migration.UpSQL != "" {
			pending = append(pending, name)
		}
	}

	return applied, pending, nil
}

// Down rolls back the last n applied migrations, newest first. It
// stops with an error at the first one that has no down file; the
// rollbacks before it stay committed.
func (r *Runner) Down(ctx context.Context, n int) error {
	if n <= 0 {
		return fmt.Errorf("n must be positive")
	}

	if err := r.ensureTable(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT version, name FROM %s ORDER BY version DESC LIMIT $1",
		r.Table,
	)

	rows, err := r.DB.QueryContext(ctx, query, n)
	if err != nil {
		return fmt.Errorf("querying migrations to rollback: %w", err)
	}
	defer rows.Close()

	var toRollback []Migration
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name); err != nil {
			return err
		}
		toRollback = append(toRollback, m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	allMigrations, err := r.loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	migrationMap := make(map[string]Migration)
	for _, m := range allMigrations {
		migrationMap[m.Version] = m
	}

	for _, migration := range toRollback {
		fullMigration, exists := migrationMap[migration.Version]
		if !exists {
			return fmt.Errorf("migration file not found for version %s", migration.Version)
		}
		if fullMigration.DownSQL == "" {
			return fmt.Errorf("no down migration for %s_%s", migration.Version, migration.Name)
		}

		if err := r.rollbackMigration(ctx, fullMigration); err != nil {
			return fmt.Errorf("rolling back migration %s_%s: %w",
				migration.Version, migration.Name, err)
		}

		log.Printf("Migrations: rolled back %s_%s", migration.Version, migration.Name)
	}

	return nil
}

func (r *Runner) rollbackMigration(ctx context.Context, migration Migration) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, migration.DownSQL); err != nil {
		return fmt.Errorf("executing down migration SQL: %w", err)
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", r.Table)
	if _, err = tx.ExecContext(ctx, deleteQuery, migration.Version); err != nil {
		return fmt.Errorf("removing migration record: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Reset rolls back every applied migration, drops the tracking table,
// then migrates from scratch. Intended for tests and local dev, not
// production use.
func (r *Runner) Reset(ctx context.Context) error {
	applied, err := r.getAppliedMigrations(ctx)
	if err != nil {
		if err := r.ensureTable(ctx); err != nil {
			return err
		}
	} else if len(applied) > 0 {
		if err := r.Down(ctx, len(applied)); err != nil {
			return fmt.Errorf("rolling back migrations: %w", err)
		}
	}

	dropQuery := fmt.Sprintf("DROP TABLE IF EXISTS %s", r.Table)
	if _, err := r.DB.ExecContext(ctx, dropQuery); err != nil {
		return fmt.Errorf("dropping migrations table: %w", err)
	}

	return r.Migrate(ctx)
}
