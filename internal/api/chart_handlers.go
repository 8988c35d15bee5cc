package api

import (
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/httputil"
	"github.com/phasefield-data/fracture.report/internal/monitoring"
)

// handleTrajectoryChart renders an HTML scatter of the tip track in
// the x/y plane, colored by step, using go-echarts. Intended for
// quick inspection without a frontend.
func (s *Server) handleTrajectoryChart(w http.ResponseWriter, r *http.Request, run *cracktip.Run) {
	records, err := s.store.ListTips(run.ID, 0, 0, 0)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list tips: %v", err))
		return
	}

	data := make([]opts.ScatterData, 0, len(records))
	maxAbs := 0.0
	maxStep := 0
	for _, rec := range records {
		if !rec.Found {
			continue
		}
		x, y := rec.Tip[0], rec.Tip[1]
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
		if rec.Step > maxStep {
			maxStep = rec.Step
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, rec.Step}})
	}
	if len(data) == 0 {
		httputil.NotFound(w, "no located tips to chart for this run")
		return
	}

	// Small padding so edge points stay visible; square axes keep the
	// geometry undistorted.
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	label := run.Label
	if label == "" {
		label = run.ID
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Crack Tip Trajectory",
			Theme:     "dark",
			Width:     "900px",
			Height:    "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Crack Tip Trajectory",
			Subtitle: fmt.Sprintf("run=%s steps=%d field=%s threshold=%g", label, len(data), run.Config.FieldName, run.Config.Threshold),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxStep),
			Text:       []string{"late step", "early step"},
			InRange:    &opts.VisualMapInRange{Color: []string{"#50a3ba", "#eac736", "#d94e5d"}},
		}),
	)
	scatter.AddSeries("tip", data)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := scatter.Render(w); err != nil {
		// Headers are already sent; all we can do is log.
		monitoring.Logf("failed to render trajectory chart: %v", err)
	}
}
