package api

import (
	"fmt"
	"image/color"
	"math"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/phasefield-data/fracture.report/internal/cracktip"
	"github.com/phasefield-data/fracture.report/internal/httputil"
	"github.com/phasefield-data/fracture.report/internal/monitoring"
)

// handleAdvancePlot renders a PNG line plot of tip distance from the
// reference against simulation step.
func (s *Server) handleAdvancePlot(w http.ResponseWriter, r *http.Request, run *cracktip.Run) {
	records, err := s.store.ListTips(run.ID, 0, 0, 0)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list tips: %v", err))
		return
	}

	pts := make(plotter.XYs, 0, len(records))
	for _, rec := range records {
		if !rec.Found {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(rec.Step), Y: math.Sqrt(rec.DistanceSq)})
	}
	if len(pts) == 0 {
		httputil.NotFound(w, "no located tips to plot for this run")
		return
	}

	p := plot.New()
	p.Title.Text = "Crack Advance"
	if run.Label != "" {
		p.Title.Text = fmt.Sprintf("Crack Advance: %s", run.Label)
	}
	p.X.Label.Text = "step"
	p.Y.Label.Text = "tip distance from reference (m)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to build plot: %v", err))
		return
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 217, G: 78, B: 93, A: 255}
	p.Add(line)

	scatter, err := plotter.NewScatter(pts)
	if err == nil {
		scatter.Radius = vg.Points(2)
		p.Add(scatter)
	}

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		monitoring.Logf("failed to write advance plot: %v", err)
	}
}
