package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, agg *Aggregator, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	RegisterHandlers(mux, agg)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

type probeBody struct {
	Status    string `json:"status"`
	CheckedAt string `json:"checked_at"`
	Checks    map[string]struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"checks"`
}

func decodeProbe(t *testing.T, rec *httptest.ResponseRecorder) probeBody {
	t.Helper()
	var body probeBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestLiveness(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(fixed("database", StatusUnhealthy))

	rec := serve(t, agg, "/healthz")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		status   Status
		wantCode int
		want     string
	}{
		{name: "healthy", status: StatusHealthy, wantCode: http.StatusOK, want: "healthy"},
		{name: "degraded", status: StatusDegraded, wantCode: http.StatusOK, want: "degraded"},
		{name: "unhealthy", status: StatusUnhealthy, wantCode: http.StatusServiceUnavailable, want: "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(AggregatorConfig{})
			agg.Register(fixed("database", tt.status))

			rec := serve(t, agg, "/readyz")
			if rec.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", rec.Code, tt.wantCode)
			}
			body := decodeProbe(t, rec)
			if body.Status != tt.want {
				t.Errorf("Status = %q, want %q", body.Status, tt.want)
			}
			if body.CheckedAt == "" {
				t.Error("checked_at missing")
			}
			if len(body.Checks) != 0 {
				t.Errorf("readiness should not list checks: %v", body.Checks)
			}
		})
	}
}

func TestDetailed(t *testing.T) {
	brokerDown := errors.New("dial tcp: connection refused")
	agg := NewAggregator(AggregatorConfig{})
	agg.Register(fixed("database", StatusHealthy))
	agg.Register(stubChecker{name: "events", check: func(context.Context) Result {
		return Result{Status: StatusUnhealthy, Message: "events unreachable", Err: brokerDown}
	}})

	rec := serve(t, agg, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d, want 503", rec.Code)
	}
	body := decodeProbe(t, rec)
	if len(body.Checks) != 2 {
		t.Fatalf("Checks = %v", body.Checks)
	}
	if body.Checks["events"].Error != brokerDown.Error() {
		t.Errorf("events error = %q", body.Checks["events"].Error)
	}

	rec = serve(t, agg, "/health?check=database")
	if rec.Code != http.StatusOK {
		t.Errorf("single check Code = %d, want 200", rec.Code)
	}
	if body := decodeProbe(t, rec); len(body.Checks) != 1 || body.Checks["database"].Status != "healthy" {
		t.Errorf("single check body = %+v", body)
	}

	rec = serve(t, agg, "/health?check=nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown check Code = %d, want 404", rec.Code)
	}
}
