package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iammatthias/office-space/pkg/sensors"
	"github.com/iammatthias/office-space/pkg/series"
	"github.com/iammatthias/office-space/pkg/syncer"
	"github.com/iammatthias/office-space/pkg/types"
)

// seriesResponse is the consumer contract: data plus loading and error
// state. Data is either raw samples or densified points, depending on
// whether a window was requested.
type seriesResponse struct {
	SeriesID string      `json:"seriesId"`
	Data     interface{} `json:"data"`
	Loading  bool        `json:"loading"`
	Error    string      `json:"error,omitempty"`
}

type summaryResponse struct {
	SeriesID string             `json:"seriesId"`
	Daily    []types.DaySummary `json:"daily"`
	AllTime  types.Summary      `json:"allTime"`
}

// handleSeries serves one series as JSON. Without parameters it returns the
// raw merged samples. With start/end it returns a densified window
// (slot defaults to one minute); normalized=1 maps values onto [0,100].
// boundary=older|newer requests an incremental fetch at that edge before
// returning the current snapshot.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sensor"]
	ctrl, ok := s.controllers[id]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown sensor: %q", id), http.StatusNotFound)
		return
	}

	switch r.URL.Query().Get("boundary") {
	case "older":
		go ctrl.Boundary(context.Background(), syncer.DirOlder)
	case "newer":
		go ctrl.Boundary(context.Background(), syncer.DirNewer)
	}

	snap := ctrl.Snapshot()
	resp := seriesResponse{
		SeriesID: id,
		Loading:  snap.Loading,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" && endStr == "" {
		resp.Data = snap.Data
		writeJSON(w, resp)
		return
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		http.Error(w, "invalid start time", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		http.Error(w, "invalid end time", http.StatusBadRequest)
		return
	}

	slot := time.Minute
	if slotStr := r.URL.Query().Get("slot"); slotStr != "" {
		slot, err = time.ParseDuration(slotStr)
		if err != nil || slot <= 0 {
			http.Error(w, "invalid slot resolution", http.StatusBadRequest)
			return
		}
	}

	if len(snap.Data) == 0 {
		resp.Data = []types.DensePoint{}
		writeJSON(w, resp)
		return
	}

	dense, err := series.Densify(snap.Data, slot, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("normalized") == "1" {
		d, err := sensors.Lookup(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		for i := range dense {
			dense[i].Value = series.Normalize(dense[i].Value, d)
		}
	}

	resp.Data = dense
	writeJSON(w, resp)
}

// handleSummary serves daily and all-time aggregates for one series.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sensor"]
	ctrl, ok := s.controllers[id]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown sensor: %q", id), http.StatusNotFound)
		return
	}

	snap := ctrl.Snapshot()
	writeJSON(w, summaryResponse{
		SeriesID: id,
		Daily:    series.DailySummaries(snap.Data, time.UTC),
		AllTime:  series.AllTimeSummary(snap.Data),
	})
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>office-space</title></head>
<body>
<h1>office-space</h1>
{{range .}}
<section>
<h2>{{.Label}}{{if .Unit}} ({{.Unit}}){{end}}</h2>
<img src="/charts/{{.ID}}.png" alt="{{.Label}}" width="900" height="320">
<p><a href="/api/v1/series/{{.ID}}">series</a> &middot; <a href="/api/v1/summary/{{.ID}}">summary</a></p>
</section>
{{end}}
</body>
</html>
`))

// handleIndex renders the static dashboard page: one chart per sensor that
// has a running controller.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var active []sensors.Descriptor
	for _, d := range sensors.All() {
		if _, ok := s.controllers[d.ID]; ok {
			active = append(active, d)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, active); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
