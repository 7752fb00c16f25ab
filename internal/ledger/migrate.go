package ledger

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

type DBDriver string

const (
	DBSQLite   DBDriver = "sqlite"
	DBPostgres DBDriver = "postgres"
)

// dialect holds the per-driver SQL needed to track applied migrations.
type dialect struct {
	dir    string
	table  string
	create string
	insert string
	stamp  func(time.Time) any
}

var dialects = map[DBDriver]dialect{
	DBSQLite: {
		dir:    "migrations/sqlite",
		table:  "schema_migrations",
		create: `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TEXT NOT NULL)`,
		insert: `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?) ON CONFLICT(version) DO NOTHING`,
		stamp:  func(t time.Time) any { return FormatTime(t) },
	},
	DBPostgres: {
		dir:    "migrations/postgres",
		table:  "spendgate_schema_migrations",
		create: `CREATE TABLE IF NOT EXISTS spendgate_schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`,
		insert: `INSERT INTO spendgate_schema_migrations(version, applied_at) VALUES($1, $2) ON CONFLICT(version) DO NOTHING`,
		stamp:  func(t time.Time) any { return t },
	},
}

func dialectFor(driver DBDriver) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported db driver: %s", driver)
	}
	return d, nil
}

// Migrate applies the embedded migrations for driver that have not been
// applied yet. Each migration and its bookkeeping row commit together.
func Migrate(db *sql.DB, driver DBDriver) error {
	if db == nil {
		return fmt.Errorf("missing db")
	}
	d, err := dialectFor(driver)
	if err != nil {
		return err
	}
	if _, err := db.Exec(d.create); err != nil {
		return fmt.Errorf("create %s: %w", d.table, err)
	}

	versions, err := migrationVersions(d.dir)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, version := range versions {
		if err := applyMigration(db, d, version, now); err != nil {
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
	}
	return nil
}

// AppliedVersions lists the migrations recorded in the database, oldest first.
func AppliedVersions(db *sql.DB, driver DBDriver) ([]string, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT version FROM ` + d.table + ` ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func applyMigration(db *sql.DB, d dialect, version string, now time.Time) error {
	body, err := migrationsFS.ReadFile(path.Join(d.dir, version+".sql"))
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(d.insert, version, d.stamp(now))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return nil
	}
	if _, err := tx.Exec(string(body)); err != nil {
		return err
	}
	return tx.Commit()
}

// migrationVersions returns the file stems under dir in lexical order.
func migrationVersions(dir string) ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".sql"))
	}
	sort.Strings(out)
	return out, nil
}
