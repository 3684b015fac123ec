package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

type checkJSON struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Latency string         `json:"latency,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type reportJSON struct {
	Status    Status               `json:"status"`
	CheckedAt string               `json:"checked_at"`
	Checks    map[string]checkJSON `json:"checks,omitempty"`
}

func toJSON(r Report, verbose bool) reportJSON {
	out := reportJSON{Status: r.Status, CheckedAt: r.CheckedAt.Format(time.RFC3339)}
	if !verbose {
		return out
	}
	out.Checks = make(map[string]checkJSON, len(r.Checks))
	for name, res := range r.Checks {
		c := checkJSON{
			Status:  res.Status,
			Message: res.Message,
			Latency: res.Latency.String(),
			Details: res.Details,
		}
		if res.Err != nil {
			c.Error = res.Err.Error()
		}
		out.Checks[name] = c
	}
	return out
}

// RegisterHandlers mounts the probes on mux:
//
//	GET /healthz  always 200 while the process serves HTTP
//	GET /readyz   overall status only
//	GET /health   every check, or ?check=name for one
//
// /readyz and /health answer 503 when the report is unhealthy.
func RegisterHandlers(mux *http.ServeMux, agg *Aggregator) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		report, _ := agg.Run(r.Context())
		respond(w, report, false)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		var names []string
		if name := r.URL.Query().Get("check"); name != "" {
			names = []string{name}
		}
		report, err := agg.Run(r.Context(), names...)
		if errors.Is(err, ErrUnknownCheck) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		respond(w, report, true)
	})
}

func respond(w http.ResponseWriter, r Report, verbose bool) {
	code := http.StatusOK
	if r.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(toJSON(r, verbose))
}
