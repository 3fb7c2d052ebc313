package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leefowlercu/timelapse/internal/session"
)

func TestServer_Healthz(t *testing.T) {
	srv := NewServer(NewHealthManager(), ServerConfig{Bind: "127.0.0.1"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET /healthz status = %d, want %d", w.Code, http.StatusOK)
	}

	var response LivezResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != "alive" {
		t.Errorf("GET /healthz status = %q, want %q", response.Status, "alive")
	}
}

func TestServer_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		status     ComponentStatus
		wantCode   int
		wantStatus string
	}{
		{"healthy", ComponentStatusRunning, http.StatusOK, HealthHealthy},
		{"degraded", ComponentStatusDegraded, http.StatusOK, HealthDegraded},
		{"failed", ComponentStatusFailed, http.StatusServiceUnavailable, HealthUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := NewHealthManager()
			hm.SetStatus(ComponentReader, tt.status, nil)
			srv := NewServer(hm, ServerConfig{Bind: "127.0.0.1"})

			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("GET /readyz status = %d, want %d", w.Code, tt.wantCode)
			}

			var response HealthStatus
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("GET /readyz Status = %q, want %q", response.Status, tt.wantStatus)
			}
			if _, ok := response.Components[ComponentReader]; !ok {
				t.Errorf("GET /readyz missing component %q", ComponentReader)
			}
		})
	}
}

func TestServer_Status(t *testing.T) {
	next := 4
	srv := NewServer(NewHealthManager(), ServerConfig{Bind: "127.0.0.1"},
		WithStatusFunc(func() session.Status {
			return session.Status{
				State:      session.StateLocationReached,
				SessionKey: "Abby-123",
				NextIndex:  &next,
			}
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want %d", w.Code, http.StatusOK)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["state"] != "location_reached" {
		t.Errorf("state = %v, want location_reached", response["state"])
	}
	if response["session_key"] != "Abby-123" {
		t.Errorf("session_key = %v, want Abby-123", response["session_key"])
	}
	if response["next_index"] != float64(4) {
		t.Errorf("next_index = %v, want 4", response["next_index"])
	}
}

func TestServer_StatusUnavailable(t *testing.T) {
	srv := NewServer(NewHealthManager(), ServerConfig{Bind: "127.0.0.1"})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /status status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_Metrics(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "timelapse_captures_total 1")
	})

	withMetrics := NewServer(NewHealthManager(), ServerConfig{}, WithMetricsHandler(metricsHandler))
	w := httptest.NewRecorder()
	withMetrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "timelapse_captures_total") {
		t.Errorf("GET /metrics = %d %q", w.Code, w.Body.String())
	}

	without := NewServer(NewHealthManager(), ServerConfig{})
	w = httptest.NewRecorder()
	without.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /metrics without handler status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	srv := NewServer(NewHealthManager(), ServerConfig{Bind: "127.0.0.1", Port: 0})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.Addr() == nil {
		t.Fatal("server never bound a listener")
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "alive") {
		t.Errorf("GET /healthz body = %q", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after Shutdown()")
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := NewServer(NewHealthManager(), ServerConfig{Bind: "127.0.0.1"})

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Errorf("Start() after Shutdown() error = %v", err)
	}
}
