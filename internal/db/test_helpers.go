package db

import (
	"testing"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/mesh"
)

// newTestDB opens a fresh on-disk database under t.TempDir so WAL
// pragmas behave as in production.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := NewDB(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// createTestRun inserts a run with a bounded region and returns it.
func createTestRun(t *testing.T, ts *TipStore, label string) *cracktip.Run {
	t.Helper()

	run := &cracktip.Run{
		ID:    "run-" + label,
		Label: label,
		Config: cracktip.ScanConfig{
			FieldName: "d",
			Threshold: 0.5,
			Reference: mesh.Point{0, 0, 0},
			Region: mesh.Region{
				Min: mesh.Point{-10, -10, -10},
				Max: mesh.Point{10, 10, 10},
			},
		},
		CreatedUnix: 1700000000,
	}
	if err := ts.InsertRun(run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	return run
}
