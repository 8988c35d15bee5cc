package cracktip

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/phasefield-data/fracture.report/internal/mesh"
	"github.com/phasefield-data/fracture.report/internal/monitoring"
	"github.com/phasefield-data/fracture.report/internal/timeutil"
)

// Run identifies one tracked simulation and the scan configuration it
// was opened with.
type Run struct {
	ID          string     `json:"run_id"`
	Label       string     `json:"label"`
	Config      ScanConfig `json:"config"`
	CreatedUnix float64    `json:"created_unix"`
}

// TipRecord is one persisted scan outcome within a run.
type TipRecord struct {
	ID          int64      `json:"id,omitempty"`
	RunID       string     `json:"run_id"`
	Step        int        `json:"step"`
	ScannedUnix float64    `json:"scanned_unix"`
	Tip         mesh.Point `json:"tip"`
	DistanceSq  float64    `json:"distance_sq"`
	Found       bool       `json:"found"`
	Candidates  int        `json:"candidates"`
}

// RecordStore persists runs and their tip history. Implemented by
// db.TipStore; nil disables persistence.
type RecordStore interface {
	InsertRun(run *Run) error
	InsertTip(rec *TipRecord) error
}

// PropagationStats summarises how far and how fast the tip has moved
// over the recorded steps.
type PropagationStats struct {
	// RatePerStep is the least-squares slope of tip distance (from the
	// reference) against step index.
	RatePerStep float64 `json:"rate_per_step"`

	// TotalAdvance is the distance gain between the first and last
	// step where a tip was found.
	TotalAdvance float64 `json:"total_advance"`

	// FoundSteps counts records where a tip qualified.
	FoundSteps int `json:"found_steps"`
}

// Tracker serialises tip scans for one run and accumulates its
// history. Scans are ordered; the locator's index-order tie-break only
// means anything if steps are not interleaved.
type Tracker struct {
	mu      sync.Mutex
	run     Run
	clock   timeutil.Clock
	store   RecordStore
	records []TipRecord
}

// NewTracker opens a run with the given label and configuration,
// persisting it when store is non-nil.
func NewTracker(label string, cfg ScanConfig, store RecordStore, clock timeutil.Clock) (*Tracker, error) {
	if cfg.FieldName == "" {
		cfg.FieldName = DefaultFieldName
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	t := &Tracker{
		run: Run{
			ID:          uuid.New().String(),
			Label:       label,
			Config:      cfg,
			CreatedUnix: float64(clock.Now().UnixNano()) / 1e9,
		},
		clock: clock,
		store: store,
	}
	if store != nil {
		if err := store.InsertRun(&t.run); err != nil {
			return nil, fmt.Errorf("failed to persist run: %w", err)
		}
	}
	return t, nil
}

// Run returns the run metadata.
func (t *Tracker) Run() Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run
}

// Scan locates the tip for one simulation step and appends it to the
// run history. A missing damage field is logged and skipped: no record
// is written and the returned result carries the reference point, per
// the recoverable FieldNotFound contract.
func (t *Tracker) Scan(step int, ps *mesh.PointSet) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg := t.run.Config
	monitoring.Logf("scan run=%s step=%d field=%q threshold=%g reference=%v region=%s points=%d",
		t.run.ID, step, cfg.FieldName, cfg.Threshold, cfg.Reference, cfg.Region, ps.Len())

	res, err := Locate(ps, cfg)
	if err != nil {
		if errors.Is(err, mesh.ErrFieldNotFound) {
			monitoring.Logf("scan run=%s step=%d: %v; keeping tip at reference", t.run.ID, step, err)
			return res, err
		}
		return res, err
	}

	rec := TipRecord{
		RunID:       t.run.ID,
		Step:        step,
		ScannedUnix: float64(t.clock.Now().UnixNano()) / 1e9,
		Tip:         res.Tip,
		DistanceSq:  res.DistanceSq,
		Found:       res.Found,
		Candidates:  res.Candidates,
	}
	if t.store != nil {
		if err := t.store.InsertTip(&rec); err != nil {
			return res, fmt.Errorf("failed to persist tip record: %w", err)
		}
	}
	t.records = append(t.records, rec)
	return res, nil
}

// Records returns a copy of the in-memory run history.
func (t *Tracker) Records() []TipRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TipRecord, len(t.records))
	copy(out, t.records)
	return out
}

// LastTip returns the most recent located tip, or the reference point
// when no step has found one yet.
func (t *Tracker) LastTip() (mesh.Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.records) - 1; i >= 0; i-- {
		if t.records[i].Found {
			return t.records[i].Tip, true
		}
	}
	return t.run.Config.Reference, false
}

// PropagationStats fits tip distance against step for all records
// where a tip was found. ok is false with fewer than two such records.
func (t *Tracker) PropagationStats() (PropagationStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Propagation(t.records)
}

// Propagation computes PropagationStats over an arbitrary history,
// typically one loaded back from the store.
func Propagation(records []TipRecord) (PropagationStats, bool) {
	var steps, dists []float64
	for _, rec := range records {
		if !rec.Found {
			continue
		}
		steps = append(steps, float64(rec.Step))
		dists = append(dists, math.Sqrt(rec.DistanceSq))
	}

	stats := PropagationStats{FoundSteps: len(steps)}
	if len(steps) < 2 {
		return stats, false
	}

	_, slope := stat.LinearRegression(steps, dists, nil, false)
	stats.RatePerStep = slope
	stats.TotalAdvance = dists[len(dists)-1] - dists[0]
	return stats, true
}
