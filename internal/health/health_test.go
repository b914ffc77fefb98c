package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthz_ReportsAliveWithUptime(t *testing.T) {
	h := New(nil)

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body payload
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.UptimeSeconds < 0 {
		t.Errorf("uptime_s = %d, want >= 0", body.UptimeSeconds)
	}
}

func TestReadyz_AllProbesPass(t *testing.T) {
	h := New([]Probe{
		{Name: "providers", Check: func(context.Context) error { return nil }},
		{Name: "audio", Check: func(context.Context) error { return nil }},
	})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body payload
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	for _, name := range []string{"providers", "audio"} {
		if !body.Probes[name].OK {
			t.Errorf("probe %q not ok: %+v", name, body.Probes[name])
		}
	}
}

func TestReadyz_FailingProbeReturns503(t *testing.T) {
	h := New([]Probe{
		{Name: "providers", Check: func(context.Context) error { return nil }},
		{Name: "audio", Check: func(context.Context) error {
			return errors.New("voice transport disconnected")
		}},
	})

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body payload
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "unavailable" {
		t.Errorf("status = %q, want unavailable", body.Status)
	}
	if !body.Probes["providers"].OK {
		t.Error("healthy probe reported as failed")
	}
	if body.Probes["audio"].OK {
		t.Error("failed probe reported as ok")
	}
	if body.Probes["audio"].Error != "voice transport disconnected" {
		t.Errorf("probe error = %q", body.Probes["audio"].Error)
	}
}

func TestReadyz_ProbeTimeout(t *testing.T) {
	h := New([]Probe{
		{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}, WithProbeTimeout(10*time.Millisecond))

	start := time.Now()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("probe ran %v, timeout did not bound it", elapsed)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestRegister_WiresRoutes(t *testing.T) {
	h := New(nil)
	mux := http.NewServeMux()
	h.Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}
