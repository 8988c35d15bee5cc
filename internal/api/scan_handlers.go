package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/db"
	"github.com/phasefield-data/fracture.report/internal/httputil"
	"github.com/phasefield-data/fracture.report/internal/mesh"
	"github.com/phasefield-data/fracture.report/internal/monitoring"
	"github.com/phasefield-data/fracture.report/internal/units"
)

// maxMeshBytes bounds uploaded mesh size (256MB covers fine meshes).
const maxMeshBytes = 256 << 20

type scanResponse struct {
	Tip        mesh.Point `json:"tip"`
	Distance   float64    `json:"distance"`
	DistanceSq float64    `json:"distance_sq"`
	Found      bool       `json:"found"`
	Candidates int        `json:"candidates"`
	Units      string     `json:"units"`
	RunID      string     `json:"run_id,omitempty"`
	Step       *int       `json:"step,omitempty"`
	Diagnostic string     `json:"diagnostic,omitempty"`

	// AvailableFields is set when the requested damage field was
	// missing, so callers can see what the mesh actually carries.
	AvailableFields []string `json:"available_fields,omitempty"`
}

// handleScan accepts a VTK mesh (raw body or multipart "mesh" part),
// locates the crack tip, and optionally appends the result to a run.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	ps, err := s.readMesh(r)
	if err != nil {
		if errors.Is(err, mesh.ErrNotUnstructuredGrid) {
			monitoring.Logf("scan rejected: %v", err)
			httputil.UnprocessableEntity(w, err.Error())
			return
		}
		httputil.BadRequest(w, fmt.Sprintf("failed to read mesh: %v", err))
		return
	}

	respUnits, ok := s.resolveUnits(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	runID := q.Get("run_id")

	var cfg cracktip.ScanConfig
	var step *int
	if runID != "" {
		run, err := s.store.GetRun(runID)
		if err == sql.ErrNoRows {
			httputil.NotFound(w, "run not found")
			return
		}
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to load run: %v", err))
			return
		}
		cfg = run.Config

		stepVal, err := strconv.Atoi(q.Get("step"))
		if err != nil {
			httputil.BadRequest(w, "run-scoped scans require an integer step parameter")
			return
		}
		step = &stepVal
	} else {
		cfg, err = s.scanConfigFromQuery(q)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}

	monitoring.Logf("scan field=%q threshold=%g reference=%v region=%s points=%d run=%q",
		cfg.FieldName, cfg.Threshold, cfg.Reference, cfg.Region, ps.Len(), runID)

	res, err := cracktip.Locate(ps, cfg)
	resp := scanResponse{
		Tip:        convertPoint(res.Tip, respUnits),
		Distance:   units.ConvertLength(math.Sqrt(res.DistanceSq), respUnits),
		DistanceSq: res.DistanceSq,
		Found:      res.Found,
		Candidates: res.Candidates,
		Units:      respUnits,
		RunID:      runID,
		Step:       step,
	}

	if err != nil {
		if !errors.Is(err, mesh.ErrFieldNotFound) {
			httputil.InternalServerError(w, err.Error())
			return
		}
		// Recoverable: report the reference point and what the mesh
		// does carry; nothing is persisted.
		monitoring.Logf("scan: %v; returning reference point", err)
		resp.Diagnostic = err.Error()
		resp.AvailableFields = ps.FieldNames()
		httputil.WriteJSONOK(w, resp)
		return
	}

	if runID != "" {
		rec := cracktip.TipRecord{
			RunID:       runID,
			Step:        *step,
			ScannedUnix: float64(s.clock.Now().UnixNano()) / 1e9,
			Tip:         res.Tip,
			DistanceSq:  res.DistanceSq,
			Found:       res.Found,
			Candidates:  res.Candidates,
		}
		if err := s.store.InsertTip(&rec); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to persist tip: %v", err))
			return
		}
	}

	httputil.WriteJSONOK(w, resp)
}

// readMesh pulls the VTK payload out of the request: a multipart
// "mesh" part when present, the raw body otherwise.
func (s *Server) readMesh(r *http.Request) (*mesh.PointSet, error) {
	var src io.Reader = io.LimitReader(r.Body, maxMeshBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMeshBytes); err != nil {
			return nil, fmt.Errorf("invalid multipart form: %w", err)
		}
		file, _, err := r.FormFile("mesh")
		if err != nil {
			return nil, fmt.Errorf("multipart form missing mesh file: %w", err)
		}
		defer file.Close()
		src = file
	}

	return mesh.ReadVTK(src)
}

// scanConfigFromQuery builds an ad-hoc scan configuration from query
// parameters layered over the server defaults.
func (s *Server) scanConfigFromQuery(q map[string][]string) (cracktip.ScanConfig, error) {
	cfg := s.defaults

	get := func(key string) string {
		if vals := q[key]; len(vals) > 0 {
			return vals[0]
		}
		return ""
	}

	if field := get("field"); field != "" {
		cfg.FieldName = field
	}
	if raw := get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			return cfg, fmt.Errorf("invalid threshold %q (want a value in [0,1])", raw)
		}
		cfg.Threshold = v
	}
	if raw := get("ref"); raw != "" {
		p, err := parsePoint(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid ref: %w", err)
		}
		cfg.Reference = p
	}
	if raw := get("region_min"); raw != "" {
		p, err := parsePoint(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid region_min: %w", err)
		}
		cfg.Region.Min = p
	}
	if raw := get("region_max"); raw != "" {
		p, err := parsePoint(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid region_max: %w", err)
		}
		cfg.Region.Max = p
	}
	return cfg, nil
}

// parsePoint parses "x,y,z" into a point.
func parsePoint(raw string) (mesh.Point, error) {
	var p mesh.Point
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("%q is not of the form x,y,z", raw)
	}
	for k, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return p, fmt.Errorf("component %d of %q: %w", k, raw, err)
		}
		p[k] = v
	}
	return p, nil
}

type createRunRequest struct {
	Label  string               `json:"label"`
	Config *cracktip.ScanConfig `json:"config"`
}

// handleRuns lists runs (GET) or creates one (POST).
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := s.store.ListRuns(limit)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
			return
		}
		if runs == nil {
			runs = []*cracktip.Run{}
		}
		httputil.WriteJSONOK(w, runs)

	case http.MethodPost:
		var req createRunRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		cfg := s.defaults
		if req.Config != nil {
			cfg = *req.Config
			if cfg.FieldName == "" {
				cfg.FieldName = s.defaults.FieldName
			}
			if cfg.Region == (mesh.Region{}) {
				cfg.Region = mesh.UnboundedRegion()
			}
		}
		if cfg.Threshold < 0 || cfg.Threshold > 1 {
			httputil.BadRequest(w, fmt.Sprintf("threshold %g out of range [0,1]", cfg.Threshold))
			return
		}

		run := &cracktip.Run{
			ID:          uuid.New().String(),
			Label:       req.Label,
			Config:      cfg,
			CreatedUnix: float64(s.clock.Now().UnixNano()) / 1e9,
		}
		if err := s.store.InsertRun(run); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to create run: %v", err))
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, run)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleRunSubpath routes /api/runs/{id}[/tips|/summary|/trajectory.html|/advance.png].
func (s *Server) handleRunSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	runID, sub, _ := strings.Cut(rest, "/")
	if runID == "" {
		httputil.NotFound(w, "run not found")
		return
	}

	run, err := s.store.GetRun(runID)
	if err == sql.ErrNoRows {
		httputil.NotFound(w, "run not found")
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load run: %v", err))
		return
	}

	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	switch sub {
	case "":
		httputil.WriteJSONOK(w, run)
	case "tips":
		s.handleRunTips(w, r, run)
	case "summary":
		s.handleRunSummary(w, r, run)
	case "trajectory.html":
		s.handleTrajectoryChart(w, r, run)
	case "advance.png":
		s.handleAdvancePlot(w, r, run)
	default:
		httputil.NotFound(w, "unknown run resource")
	}
}

type tipResponse struct {
	cracktip.TipRecord
	Distance float64 `json:"distance"`
}

func (s *Server) handleRunTips(w http.ResponseWriter, r *http.Request, run *cracktip.Run) {
	respUnits, ok := s.resolveUnits(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	minStep, _ := strconv.Atoi(q.Get("min_step"))
	maxStep, _ := strconv.Atoi(q.Get("max_step"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	records, err := s.store.ListTips(run.ID, minStep, maxStep, limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list tips: %v", err))
		return
	}

	out := make([]tipResponse, 0, len(records))
	for _, rec := range records {
		converted := *rec
		converted.Tip = convertPoint(rec.Tip, respUnits)
		out = append(out, tipResponse{
			TipRecord: converted,
			Distance:  units.ConvertLength(math.Sqrt(rec.DistanceSq), respUnits),
		})
	}
	httputil.WriteJSONOK(w, out)
}

type summaryResponse struct {
	Run         *cracktip.Run              `json:"run"`
	Summary     *db.RunSummary             `json:"summary"`
	Propagation *cracktip.PropagationStats `json:"propagation,omitempty"`
}

func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request, run *cracktip.Run) {
	summary, err := s.store.Summary(run.ID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to summarise run: %v", err))
		return
	}

	resp := summaryResponse{Run: run, Summary: summary}

	records, err := s.store.ListTips(run.ID, 0, 0, 0)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list tips: %v", err))
		return
	}
	history := make([]cracktip.TipRecord, len(records))
	for i, rec := range records {
		history[i] = *rec
	}
	if stats, ok := cracktip.Propagation(history); ok {
		resp.Propagation = &stats
	}

	httputil.WriteJSONOK(w, resp)
}
