package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"groundlink/pkg/db"
)

func TestDB(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "nested", "db_test.db")

	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if d == nil {
		t.Fatal("Init() returned nil DB")
	}
	defer d.Close()

	for _, table := range []string{"persistent_state", "command_events"} {
		var name string
		err := d.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestDB_MigrateTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	d, err := db.Init(path)
	if err != nil {
		t.Fatalf("first Init() failed: %v", err)
	}
	d.Close()

	d, err = db.Init(path)
	if err != nil {
		t.Fatalf("second Init() failed: %v", err)
	}
	d.Close()
}

func TestPruneEvents(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "prune.db"))
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer d.Close()

	old := time.Now().Add(-48 * time.Hour).UTC()
	if _, err := d.Exec("INSERT INTO command_events (command, success, created_at) VALUES ('arm', 1, ?)", old); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	if _, err := d.Exec("INSERT INTO command_events (command, success, created_at) VALUES ('land', 1, ?)", time.Now().UTC()); err != nil {
		t.Fatalf("insert new: %v", err)
	}

	n, err := d.PruneEvents(24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneEvents() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PruneEvents() removed %d rows, want 1", n)
	}
}
