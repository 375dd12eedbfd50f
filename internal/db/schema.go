package db

import (
	"database/sql"
	"fmt"
	"strconv"
)

const currentSchemaVersion = 1

// schemaDDL contains the CREATE TABLE statements for the current schema.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS extracted_resources (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	model_type TEXT NOT NULL,
	model_url  TEXT NOT NULL,
	page       INTEGER NOT NULL,
	position   INTEGER NOT NULL,
	data       TEXT NOT NULL,
	UNIQUE(model_type, model_url),
	UNIQUE(model_type, page, position)
);

CREATE INDEX IF NOT EXISTS idx_extracted_resources_page
	ON extracted_resources(model_type, page, position);

CREATE TABLE IF NOT EXISTS url_mappings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	model_name TEXT NOT NULL,
	source_url TEXT NOT NULL,
	target_url TEXT NOT NULL,
	action     TEXT NOT NULL,
	UNIQUE(model_name, source_url)
);
`

// Initialize creates all tables if they don't exist and sets the schema version.
func Initialize(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaDDL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	// Set schema version only if not already set.
	_, err = tx.Exec(
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(currentSchemaVersion),
	)
	if err != nil {
		return fmt.Errorf("setting schema version: %w", err)
	}

	return tx.Commit()
}

// SchemaVersion returns the current schema version from the meta table.
func SchemaVersion(db *sql.DB) (int, error) {
	val, err := GetMeta(db, "schema_version")
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	v, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("parsing schema version %q: %w", val, err)
	}

	return v, nil
}

// CheckSchema fails when the store was created with a different schema
// version. Stores are per-run staging areas, so there is nothing to migrate.
func CheckSchema(db *sql.DB) error {
	v, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("store schema version %d is not supported, want %d", v, currentSchemaVersion)
	}
	return nil
}

// GetMeta reads a meta value. It returns ErrNotFound when key is unset.
func GetMeta(db *sql.DB, key string) (string, error) {
	var val string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading meta %q: %w", key, err)
	}
	return val, nil
}

// SetMeta writes a meta value, replacing any previous one.
func SetMeta(db *sql.DB, key, value string) error {
	if _, err := db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value,
	); err != nil {
		return fmt.Errorf("writing meta %q: %w", key, err)
	}
	return nil
}
