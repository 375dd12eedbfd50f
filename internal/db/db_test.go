package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ALT-F4-LLC/bbs-exporter/internal/model"
)

func mustOpen(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Initialize(db); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return db
}

func rec(t model.ModelType, url string) model.ArchiveRecord {
	return model.ArchiveRecord{ModelType: t, ModelURL: url, Data: json.RawMessage(fmt.Sprintf(`{"url":%q}`, url))}
}

func TestOpenSetsBusyTimeout(t *testing.T) {
	db := mustOpen(t)

	var timeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("querying busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestInitializeCreatesAllTables(t *testing.T) {
	db := mustOpen(t)

	for _, table := range []string{"meta", "extracted_resources", "url_mappings"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	db := mustOpen(t)

	if err := Initialize(db); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}

	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != currentSchemaVersion {
		t.Errorf("schema_version = %d after double init, want %d", v, currentSchemaVersion)
	}
}

func TestOpenStoreRejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.db")
	db, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if err := SetMeta(db, "schema_version", "7"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	db.Close()

	if db, err := OpenStore(path); err == nil {
		db.Close()
		t.Fatal("OpenStore accepted schema version 7")
	}
}

func TestOpenStoreOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.db")
	db, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if _, _, err := InsertRecord(db, rec(model.ModelUser, "u1"), 10); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	db.Close()

	db, err = OpenStore(path)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer db.Close()
	types, err := ListModelTypes(db)
	if err != nil {
		t.Fatalf("ListModelTypes after reopen: %v", err)
	}
	if len(types) != 1 || types[0] != model.ModelUser {
		t.Fatalf("types after reopen = %v, want [user]", types)
	}
}

func TestMeta(t *testing.T) {
	db := mustOpen(t)

	if _, err := GetMeta(db, "run_id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMeta(unset) err = %v, want ErrNotFound", err)
	}
	if err := SetMeta(db, "run_id", "a"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	if err := SetMeta(db, "run_id", "b"); err != nil {
		t.Fatalf("SetMeta overwrite: %v", err)
	}
	got, err := GetMeta(db, "run_id")
	if err != nil || got != "b" {
		t.Fatalf("GetMeta = %q, %v, want b", got, err)
	}
}
