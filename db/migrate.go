package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/legisync/errors"
)

//go:embed sqlite/migrations/*.sql
var migrationFS embed.FS

const migrationDir = "sqlite/migrations"

// migration is one embedded schema file, versioned by its numeric prefix
type migration struct {
	version string
	file    string
	sql     string
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir(migrationDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	var out []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		body, err := migrationFS.ReadFile(path.Join(migrationDir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		out = append(out, migration{
			version: strings.SplitN(name, "_", 2)[0],
			file:    name,
			sql:     string(body),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// applied returns the recorded versions. A missing schema_migrations table
// means nothing has been applied yet.
func applied(db *sql.DB) (map[string]bool, error) {
	done := make(map[string]bool)

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		if IsDatabaseClosed(err) {
			return nil, errors.Mark(errors.Wrap(err, "check applied migrations"), ErrDatabaseClosed)
		}
		if isMissingTable(err) {
			return done, nil
		}
		return nil, errors.Wrap(err, "check applied migrations")
	}
	defer rows.Close()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan migration version")
		}
		done[v] = true
	}
	return done, rows.Err()
}

// Migrate brings the ledger schema up to date. Each migration runs in its
// own transaction together with its schema_migrations row.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	all, err := loadMigrations()
	if err != nil {
		return err
	}
	done, err := applied(db)
	if err != nil {
		return err
	}
	if len(done) == 0 && len(all) > 0 && all[0].version != "000" {
		return errors.Newf("first migration must be 000, got %s", all[0].file)
	}

	count := 0
	for _, m := range all {
		if done[m.version] {
			continue
		}
		if logger != nil {
			logger.Infow("Applying migration", "migration", m.file, "version", m.version)
		}
		if err := apply(db, m); err != nil {
			return err
		}
		count++
	}

	if logger != nil {
		logger.Debugw("Ledger schema up to date", "applied", count, "total_migrations", len(all))
	}
	return nil
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.file)
	}
	if _, err := tx.Exec(m.sql); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "execute %s", m.file)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "record %s", m.file)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.file)
}
