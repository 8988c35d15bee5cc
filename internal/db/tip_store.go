package db

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/mesh"
)

// TipStore handles database operations for runs and tip_history. It
// implements cracktip.RecordStore.
type TipStore struct {
	db *DB
}

// NewTipStore creates a TipStore backed by the given database.
func NewTipStore(db *DB) *TipStore {
	return &TipStore{db: db}
}

// RunSummary aggregates a run's tip history.
type RunSummary struct {
	RunID         string     `json:"run_id"`
	TotalSteps    int        `json:"total_steps"`
	FoundSteps    int        `json:"found_steps"`
	MaxDistanceSq float64    `json:"max_distance_sq"`
	LastTip       mesh.Point `json:"last_tip"`
	LastStep      int        `json:"last_step"`
}

// regionBound maps an infinite (unbounded) region bound to NULL for
// storage; SQLite doubles round-trip infinities poorly across tools.
func regionBound(v float64, sign int) sql.NullFloat64 {
	if math.IsInf(v, sign) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func boundOrInf(v sql.NullFloat64, sign int) float64 {
	if !v.Valid {
		return math.Inf(sign)
	}
	return v.Float64
}

// InsertRun persists run metadata.
func (ts *TipStore) InsertRun(run *cracktip.Run) error {
	query := `
		INSERT INTO runs (
			run_id, label, field_name, threshold,
			ref_x, ref_y, ref_z,
			region_min_x, region_min_y, region_min_z,
			region_max_x, region_max_y, region_max_z,
			created_unix
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	cfg := run.Config
	_, err := ts.db.Exec(query,
		run.ID, run.Label, cfg.FieldName, cfg.Threshold,
		cfg.Reference[0], cfg.Reference[1], cfg.Reference[2],
		regionBound(cfg.Region.Min[0], -1), regionBound(cfg.Region.Min[1], -1), regionBound(cfg.Region.Min[2], -1),
		regionBound(cfg.Region.Max[0], 1), regionBound(cfg.Region.Max[1], 1), regionBound(cfg.Region.Max[2], 1),
		run.CreatedUnix,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun loads one run by ID. Returns sql.ErrNoRows when absent.
func (ts *TipStore) GetRun(runID string) (*cracktip.Run, error) {
	query := `
		SELECT run_id, label, field_name, threshold,
			ref_x, ref_y, ref_z,
			region_min_x, region_min_y, region_min_z,
			region_max_x, region_max_y, region_max_z,
			created_unix
		FROM runs WHERE run_id = ?
	`
	return scanRun(ts.db.QueryRow(query, runID))
}

// ListRuns returns runs ordered newest first.
func (ts *TipStore) ListRuns(limit int) ([]*cracktip.Run, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT run_id, label, field_name, threshold,
			ref_x, ref_y, ref_z,
			region_min_x, region_min_y, region_min_z,
			region_max_x, region_max_y, region_max_z,
			created_unix
		FROM runs ORDER BY created_unix DESC LIMIT ?
	`
	rows, err := ts.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*cracktip.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*cracktip.Run, error) {
	var run cracktip.Run
	var minX, minY, minZ, maxX, maxY, maxZ sql.NullFloat64
	err := row.Scan(
		&run.ID, &run.Label, &run.Config.FieldName, &run.Config.Threshold,
		&run.Config.Reference[0], &run.Config.Reference[1], &run.Config.Reference[2],
		&minX, &minY, &minZ,
		&maxX, &maxY, &maxZ,
		&run.CreatedUnix,
	)
	if err != nil {
		return nil, err
	}
	run.Config.Region = mesh.Region{
		Min: mesh.Point{boundOrInf(minX, -1), boundOrInf(minY, -1), boundOrInf(minZ, -1)},
		Max: mesh.Point{boundOrInf(maxX, 1), boundOrInf(maxY, 1), boundOrInf(maxZ, 1)},
	}
	return &run, nil
}

// InsertTip persists one scan record and fills in its row ID.
func (ts *TipStore) InsertTip(rec *cracktip.TipRecord) error {
	query := `
		INSERT INTO tip_history (
			run_id, step, scanned_unix,
			tip_x, tip_y, tip_z,
			distance_sq, found, candidates
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := ts.db.Exec(query,
		rec.RunID, rec.Step, rec.ScannedUnix,
		rec.Tip[0], rec.Tip[1], rec.Tip[2],
		rec.DistanceSq, rec.Found, rec.Candidates,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tip record: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// ListTips retrieves a run's history in step order, optionally bounded
// by step range. limit <= 0 means no limit beyond a sane cap.
func (ts *TipStore) ListTips(runID string, minStep, maxStep, limit int) ([]*cracktip.TipRecord, error) {
	if limit <= 0 {
		limit = 10000
	}
	if maxStep <= 0 {
		maxStep = math.MaxInt32
	}
	query := `
		SELECT id, run_id, step, scanned_unix,
			tip_x, tip_y, tip_z,
			distance_sq, found, candidates
		FROM tip_history
		WHERE run_id = ? AND step >= ? AND step <= ?
		ORDER BY step ASC, id ASC
		LIMIT ?
	`
	rows, err := ts.db.Query(query, runID, minStep, maxStep, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tip history: %w", err)
	}
	defer rows.Close()

	var records []*cracktip.TipRecord
	for rows.Next() {
		var rec cracktip.TipRecord
		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Step, &rec.ScannedUnix,
			&rec.Tip[0], &rec.Tip[1], &rec.Tip[2],
			&rec.DistanceSq, &rec.Found, &rec.Candidates,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tip record: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Summary aggregates a run's history in one query.
func (ts *TipStore) Summary(runID string) (*RunSummary, error) {
	summary := &RunSummary{RunID: runID}

	query := `
		SELECT COUNT(*),
			COALESCE(SUM(found), 0),
			COALESCE(MAX(CASE WHEN found THEN distance_sq END), 0)
		FROM tip_history WHERE run_id = ?
	`
	err := ts.db.QueryRow(query, runID).Scan(
		&summary.TotalSteps, &summary.FoundSteps, &summary.MaxDistanceSq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise run: %w", err)
	}

	last := `
		SELECT step, tip_x, tip_y, tip_z
		FROM tip_history
		WHERE run_id = ? AND found
		ORDER BY step DESC, id DESC LIMIT 1
	`
	err = ts.db.QueryRow(last, runID).Scan(
		&summary.LastStep, &summary.LastTip[0], &summary.LastTip[1], &summary.LastTip[2],
	)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read last tip: %w", err)
	}

	return summary, nil
}
