package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Placement is where a record lands in the archive: page numbers start at 1,
// positions at 0 within the page.
type Placement struct {
	Page     int
	Position int
}

// InsertRecord stores rec unless a record with the same model type and URL
// exists. New records go after the last stored record of their type, opening
// a new page when the current one holds pageSize records. The returned bool
// is false for duplicates.
func InsertRecord(db *sql.DB, rec model.ArchiveRecord, pageSize int) (Placement, bool, error) {
	if pageSize < 1 {
		return Placement{}, false, fmt.Errorf("invalid page size %d", pageSize)
	}

	tx, err := db.Begin()
	if err != nil {
		return Placement{}, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM extracted_resources WHERE model_type = ? AND model_url = ?)`,
		rec.ModelType, rec.ModelURL,
	).Scan(&exists); err != nil {
		return Placement{}, false, fmt.Errorf("checking record existence: %w", err)
	}
	if exists {
		return Placement{}, false, nil
	}

	var count int
	if err := tx.QueryRow(
		`SELECT COUNT(*) FROM extracted_resources WHERE model_type = ?`, rec.ModelType,
	).Scan(&count); err != nil {
		return Placement{}, false, fmt.Errorf("counting %s records: %w", rec.ModelType, err)
	}
	p := Placement{Page: count/pageSize + 1, Position: count % pageSize}

	if _, err := tx.Exec(
		`INSERT INTO extracted_resources (model_type, model_url, page, position, data)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ModelType, rec.ModelURL, p.Page, p.Position, string(rec.Data),
	); err != nil {
		return Placement{}, false, fmt.Errorf("inserting %s record: %w", rec.ModelType, err)
	}

	if err := tx.Commit(); err != nil {
		return Placement{}, false, fmt.Errorf("committing transaction: %w", err)
	}
	return p, true, nil
}

// ListModelTypes returns every model type with at least one record, sorted.
func ListModelTypes(db *sql.DB) ([]model.ModelType, error) {
	rows, err := db.Query(`SELECT DISTINCT model_type FROM extracted_resources ORDER BY model_type`)
	if err != nil {
		return nil, fmt.Errorf("querying model types: %w", err)
	}
	defer rows.Close()

	var types []model.ModelType
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning model type: %w", err)
		}
		types = append(types, model.ModelType(t))
	}
	return types, rows.Err()
}

// PageCount returns the number of pages holding records of modelType.
func PageCount(db *sql.DB, modelType model.ModelType) (int, error) {
	var pages int
	if err := db.QueryRow(
		`SELECT COALESCE(MAX(page), 0) FROM extracted_resources WHERE model_type = ?`, modelType,
	).Scan(&pages); err != nil {
		return 0, fmt.Errorf("counting %s pages: %w", modelType, err)
	}
	return pages, nil
}

// ListPage returns the data of every record on one page, in position order.
func ListPage(db *sql.DB, modelType model.ModelType, page int) ([]json.RawMessage, error) {
	rows, err := db.Query(
		`SELECT data FROM extracted_resources
		 WHERE model_type = ? AND page = ? ORDER BY position ASC`, modelType, page,
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s page %d: %w", modelType, page, err)
	}
	defer rows.Close()

	records := make([]json.RawMessage, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, json.RawMessage(data))
	}
	return records, rows.Err()
}

// CountByModelType returns the number of records per model type.
func CountByModelType(db *sql.DB) (map[model.ModelType]int, error) {
	rows, err := db.Query(`SELECT model_type, COUNT(*) FROM extracted_resources GROUP BY model_type`)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.ModelType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[model.ModelType(t)] = n
	}
	return counts, rows.Err()
}

// InsertURLMapping stores m. A second mapping for the same model name and
// source URL is ignored; the returned bool reports whether m was stored.
func InsertURLMapping(db *sql.DB, m model.URLMapping) (bool, error) {
	res, err := db.Exec(
		`INSERT OR IGNORE INTO url_mappings (model_name, source_url, target_url, action)
		 VALUES (?, ?, ?, ?)`,
		m.ModelName, m.SourceURL, m.TargetURL, m.Action,
	)
	if err != nil {
		return false, fmt.Errorf("inserting url mapping: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n > 0, nil
}

// ListURLMappings returns every mapping in insertion order.
func ListURLMappings(db *sql.DB) ([]model.URLMapping, error) {
	rows, err := db.Query(
		`SELECT model_name, source_url, target_url, action FROM url_mappings ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying url mappings: %w", err)
	}
	defer rows.Close()

	mappings := make([]model.URLMapping, 0)
	for rows.Next() {
		var m model.URLMapping
		var action string
		if err := rows.Scan(&m.ModelName, &m.SourceURL, &m.TargetURL, &action); err != nil {
			return nil, fmt.Errorf("scanning url mapping: %w", err)
		}
		m.Action = model.MappingAction(action)
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// ClearAllData removes every record and mapping, keeping meta.
func ClearAllData(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"extracted_resources", "url_mappings"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return tx.Commit()
}
