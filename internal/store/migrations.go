package store

import (
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS water_balance (
    field_id TEXT NOT NULL,
    date DATE NOT NULL,
    dr_mm REAL NOT NULL,
    de_mm REAL NOT NULL,
    taw_mm REAL NOT NULL,
    raw_mm REAL NOT NULL,
    ks REAL NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (field_id, date)
);

CREATE TABLE IF NOT EXISTS decisions (
    id TEXT NOT NULL,
    field_id TEXT NOT NULL,
    date DATE NOT NULL,
    outcome TEXT NOT NULL,
    amount_mm REAL NOT NULL DEFAULT 0,
    delayed BOOLEAN NOT NULL DEFAULT FALSE,
    ks REAL,
    dr_mm REAL,
    raw_mm REAL,
    et0_mm REAL,
    etc_mm REAL,
    expected_mm REAL,
    is_real_data BOOLEAN NOT NULL DEFAULT TRUE,
    message TEXT,
    warnings TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (field_id, date)
);

CREATE INDEX IF NOT EXISTS idx_decisions_field_date ON decisions(field_id, date DESC);
`,
	},
	{
		Version:     2,
		Description: "Applied irrigation feedback",
		SQL: `
CREATE TABLE IF NOT EXISTS applied_irrigation (
    field_id TEXT NOT NULL,
    date DATE NOT NULL,
    mm REAL NOT NULL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (field_id, date)
);
`,
	},
}

// Migrate applies any pending schema migrations in order.
func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
