package db

import (
	"database/sql"
	"math"
	"testing"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/mesh"
)

func TestInsertAndGetRun(t *testing.T) {
	database := newTestDB(t)
	ts := NewTipStore(database)

	want := createTestRun(t, ts, "alpha")

	got, err := ts.GetRun(want.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Label != "alpha" || got.Config.FieldName != "d" || got.Config.Threshold != 0.5 {
		t.Errorf("GetRun returned %+v", got)
	}
	if got.Config.Region != want.Config.Region {
		t.Errorf("region round-trip: got %v, want %v", got.Config.Region, want.Config.Region)
	}
}

func TestRunUnboundedRegionRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ts := NewTipStore(database)

	run := &cracktip.Run{
		ID:          "run-unbounded",
		Config:      cracktip.DefaultScanConfig(),
		CreatedUnix: 1700000001,
	}
	if err := ts.InsertRun(run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	got, err := ts.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if !got.Config.Region.IsUnbounded() {
		t.Errorf("region came back bounded: %v", got.Config.Region)
	}
}

func TestGetRunMissing(t *testing.T) {
	database := newTestDB(t)
	ts := NewTipStore(database)

	_, err := ts.GetRun("nope")
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	database := newTestDB(t)
	ts := NewTipStore(database)

	older := createTestRun(t, ts, "older")
	newer := createTestRun(t, ts, "newer")
	// createTestRun uses a fixed timestamp; nudge the newer one.
	if _, err := database.Exec(`UPDATE runs SET created_unix = created_unix + 10 WHERE run_id = ?`, newer.ID); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	runs, err := ts.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != newer.ID || runs[1].ID != older.ID {
		t.Errorf("runs out of order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestInsertAndListTips(t *testing.T) {
	database := newTestDB(t)
	ts := NewTipStore(database)
	run := createTestRun(t, ts, "tips")

	for step := 0; step < 5; step++ {
		rec := &cracktip.TipRecord{
			RunID:       run.ID,
			Step:        step,
			ScannedUnix: 1700000000 + float64(step),
			Tip:         mesh.Point{float64(step), 0, 0},
			DistanceSq:  float64(step * step),
			Found:       step > 0,
			Candidates:  step,
		}
		if err := ts.InsertTip(rec); err != nil {
			t.Fatalf("InsertTip step %d failed: %v", step, err)
		}
		if rec.ID == 0 {
			t.Errorf("InsertTip did not fill row ID")
		}
	}

	records, err := ts.ListTips(run.ID, 0, 0, 0)
	if err != nil {
		t.Fatalf("ListTips failed: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("got %d records, want 5", len(records))
	}
	for i, rec := range records {
		if rec.Step != i {
			t.Errorf("record %d has step %d", i, rec.Step)
		}
	}

	bounded, err := ts.ListTips(run.ID, 1, 3, 0)
	if err != nil {
		t.Fatalf("ListTips bounded failed: %v", err)
	}
	if len(bounded) != 3 {
		t.Errorf("bounded list returned %d records, want 3", len(bounded))
	}

	limited, err := ts.ListTips(run.ID, 0, 0, 2)
	if err != nil {
		t.Fatalf("ListTips limited failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited list returned %d records, want 2", len(limited))
	}
}

func TestSummary(t *testing.T) {
	database := newTestDB(t)
	ts := NewTipStore(database)
	run := createTestRun(t, ts, "summary")

	tips := []cracktip.TipRecord{
		{Step: 0, Found: false},
		{Step: 1, Found: true, Tip: mesh.Point{1, 0, 0}, DistanceSq: 1},
		{Step: 2, Found: true, Tip: mesh.Point{3, 0, 0}, DistanceSq: 9},
	}
	for i := range tips {
		tips[i].RunID = run.ID
		if err := ts.InsertTip(&tips[i]); err != nil {
			t.Fatalf("InsertTip failed: %v", err)
		}
	}

	summary, err := ts.Summary(run.ID)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.TotalSteps != 3 || summary.FoundSteps != 2 {
		t.Errorf("summary counts = %d/%d, want 3/2", summary.TotalSteps, summary.FoundSteps)
	}
	if summary.MaxDistanceSq != 9 {
		t.Errorf("MaxDistanceSq = %g, want 9", summary.MaxDistanceSq)
	}
	if summary.LastStep != 2 || summary.LastTip != (mesh.Point{3, 0, 0}) {
		t.Errorf("last tip = step %d at %v", summary.LastStep, summary.LastTip)
	}
}

func TestSummaryEmptyRun(t *testing.T) {
	database := newTestDB(t)
	ts := NewTipStore(database)
	run := createTestRun(t, ts, "empty")

	summary, err := ts.Summary(run.ID)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.TotalSteps != 0 || summary.FoundSteps != 0 {
		t.Errorf("summary = %+v, want zeroes", summary)
	}
	if summary.LastTip != (mesh.Point{}) {
		t.Errorf("LastTip = %v, want origin zero value", summary.LastTip)
	}
}

func TestTrackerAgainstRealStore(t *testing.T) {
	database := newTestDB(t)
	ts := NewTipStore(database)

	cfg := cracktip.DefaultScanConfig()
	tr, err := cracktip.NewTracker("integration", cfg, ts, nil)
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}

	ps := mesh.NewPointSet([]mesh.Point{{0, 0, 0}, {2, 0, 0}})
	if err := ps.AddField("d", []float64{0.9, 0.9}); err != nil {
		t.Fatalf("AddField failed: %v", err)
	}
	if _, err := tr.Scan(0, ps); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	records, err := ts.ListTips(tr.Run().ID, 0, 0, 0)
	if err != nil {
		t.Fatalf("ListTips failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Tip != (mesh.Point{2, 0, 0}) {
		t.Errorf("persisted tip = %v", records[0].Tip)
	}
	if math.Abs(records[0].DistanceSq-4) > 1e-12 {
		t.Errorf("persisted distance_sq = %g, want 4", records[0].DistanceSq)
	}
}
