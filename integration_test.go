package SliceDB

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nickyhof/SliceDB/core"
	"github.com/nickyhof/SliceDB/db"
	"github.com/nickyhof/SliceDB/ps"
)

var testIdentity = core.Identity{Name: "test", Email: "test@test.com"}

// TestEndToEndWorkflow walks the full lifecycle: load data in one session,
// slice and sink in another, snapshot between scopes, damage the database,
// and restore the snapshot.
func TestEndToEndWorkflow(t *testing.T) {
	dir := t.TempDir()
	instance := Open(filepath.Join(dir, "pipeline.duckdb"))
	ctx := context.Background()

	// Scope 1: load.
	err := instance.Session(ctx, func(s *db.Session) error {
		if err := s.Exec("CREATE TABLE readings (sensor VARCHAR, v INTEGER)"); err != nil {
			return err
		}
		return s.Exec(`INSERT INTO readings VALUES
			('a', 1), ('a', 2), ('a', 3),
			('b', 10), ('b', 20),
			('c', 100)`)
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// Scope 2: slice by sensor and sink the per-group frames.
	err = instance.Session(ctx, func(s *db.Session) error {
		for frame, err := range s.IterGroup("readings", []string{"sensor"}) {
			if err != nil {
				return err
			}
			if err := s.Push(frame, "copied"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("slicing failed: %v", err)
	}

	// Snapshot between scopes.
	archive, err := ps.NewFileArchive(filepath.Join(dir, "archive"), nil)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	snapshot, err := instance.Snapshot(&archive, testIdentity, "after slicing")
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	// Scope 3: destructive change.
	err = instance.Session(ctx, func(s *db.Session) error {
		return s.Exec("DROP TABLE copied")
	})
	if err != nil {
		t.Fatalf("drop failed: %v", err)
	}

	// Restore and verify the sink is back with all six rows.
	if err := instance.Restore(&archive, snapshot.Id); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	err = instance.Session(ctx, func(s *db.Session) error {
		frame, err := s.QueryFrame("SELECT COUNT(*) FROM copied")
		if err != nil {
			return err
		}
		if core.FormatValue(frame.Rows[0][0]) != "6" {
			t.Errorf("expected 6 restored rows, got %v", frame.Rows[0][0])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verification failed: %v", err)
	}
}

func TestInstanceExportImport(t *testing.T) {
	dir := t.TempDir()
	instance := Open(filepath.Join(dir, "source.duckdb"))
	ctx := context.Background()

	err := instance.Session(ctx, func(s *db.Session) error {
		if err := s.Exec("CREATE TABLE t (v INTEGER)"); err != nil {
			return err
		}
		return s.Exec("INSERT INTO t VALUES (1), (2)")
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	// Export to a plain path, import into a second instance, query it.
	exported := filepath.Join(dir, "exported.duckdb")
	if err := instance.Export(exported, nil); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	clone := Open(filepath.Join(dir, "clone.duckdb"))
	if err := clone.Import("file://"+exported, nil); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	err = clone.Session(ctx, func(s *db.Session) error {
		frame, err := s.QueryFrame("SELECT COUNT(*) FROM t")
		if err != nil {
			return err
		}
		if core.FormatValue(frame.Rows[0][0]) != "2" {
			t.Errorf("expected 2 rows in clone, got %v", frame.Rows[0][0])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("clone verification failed: %v", err)
	}
}

func TestOpenDoesNotTouchDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lazy.duckdb")

	instance := Open(path)
	if instance.Path != path {
		t.Errorf("expected path %q, got %q", path, instance.Path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Open must not create the database file")
	}

	// First session entry creates it.
	err := instance.Session(context.Background(), func(s *db.Session) error {
		return nil
	})
	if err != nil {
		t.Fatalf("session failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected database file after first session: %v", err)
	}
}
