package dashboard

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/iammatthias/office-space/pkg/sensors"
	"github.com/iammatthias/office-space/pkg/series"
)

// handleChart renders a PNG line chart of the last 24 hours, densified to
// per-minute slots so the line never breaks on gaps. normalized=1 plots the
// [0,100] display scale instead of physical units.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sensor"]
	ctrl, ok := s.controllers[id]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown sensor: %q", id), http.StatusNotFound)
		return
	}

	d, err := sensors.Lookup(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	snap := ctrl.Snapshot()
	if len(snap.Data) == 0 {
		http.Error(w, "no data yet", http.StatusNotFound)
		return
	}

	end := time.Now().UTC().Truncate(time.Minute)
	start := end.Add(-24 * time.Hour)

	dense, err := series.Densify(snap.Data, time.Minute, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	normalized := r.URL.Query().Get("normalized") == "1"

	xs := make([]time.Time, len(dense))
	ys := make([]float64, len(dense))
	for i, p := range dense {
		xs[i] = p.Timestamp
		ys[i] = p.Value
		if normalized {
			ys[i] = series.Normalize(p.Value, d)
		}
	}

	graph := chart.Chart{
		Title:  d.Label,
		Width:  900,
		Height: 320,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04"),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    d.Label,
				XValues: xs,
				YValues: ys,
			},
		},
	}

	w.Header().Set("Content-Type", chart.ContentTypePNG)
	if err := graph.Render(chart.PNG, w); err != nil {
		http.Error(w, fmt.Sprintf("chart render failed: %v", err), http.StatusInternalServerError)
	}
}
