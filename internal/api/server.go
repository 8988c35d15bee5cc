// Package api exposes the crack-tip scan and run-history HTTP surface.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/db"
	"github.com/phasefield-data/fracture.report/internal/httputil"
	"github.com/phasefield-data/fracture.report/internal/mesh"
	"github.com/phasefield-data/fracture.report/internal/timeutil"
	"github.com/phasefield-data/fracture.report/internal/units"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server handles the HTTP API. defaults seeds ad-hoc scans that carry
// no explicit parameters; units is the default response length unit.
type Server struct {
	store    *db.TipStore
	defaults cracktip.ScanConfig
	units    string
	clock    timeutil.Clock
}

// NewServer creates a Server. A nil clock falls back to real time.
func NewServer(store *db.TipStore, defaults cracktip.ScanConfig, defaultUnits string, clock timeutil.Clock) *Server {
	if defaults.FieldName == "" {
		defaults = cracktip.DefaultScanConfig()
	}
	if defaultUnits == "" {
		defaultUnits = units.Meters
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		store:    store,
		defaults: defaults,
		units:    defaultUnits,
		clock:    clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux wires the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunSubpath)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// resolveUnits validates the units query parameter, falling back to
// the server default. The bool result is false when the parameter was
// present but invalid (a 400 has already been written).
func (s *Server) resolveUnits(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := r.URL.Query().Get("units")
	if u == "" {
		return s.units, true
	}
	if !units.IsValid(u) {
		httputil.BadRequest(w, "invalid units; valid values: "+units.GetValidUnitsString())
		return "", false
	}
	return u, true
}

// convertPoint converts a point from meters to the target units.
func convertPoint(p mesh.Point, targetUnits string) mesh.Point {
	return mesh.Point{
		units.ConvertLength(p[0], targetUnits),
		units.ConvertLength(p[1], targetUnits),
		units.ConvertLength(p[2], targetUnits),
	}
}
