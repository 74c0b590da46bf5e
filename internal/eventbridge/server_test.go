package eventbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kingrea/beads-continuation/internal/config"
)

func TestSettingsFromConfigFollowsResolvedConfig(t *testing.T) {
	t.Setenv("BDCONT_BRIDGE_PORT", "9001")
	t.Setenv("BDCONT_BRIDGE_HOST", "0.0.0.0")
	t.Setenv("BDCONT_BRIDGE_ENABLED", "false")
	cfg, err := config.NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	settings := SettingsFromConfig(cfg)
	if settings.Port != 9001 || settings.Host != "0.0.0.0" || settings.Enabled {
		t.Fatalf("unexpected settings: %#v", settings)
	}
	if settings.MaxBodyBytes != DefaultMaxBodyBytes || settings.ReadTimeout != DefaultReadTimeout {
		t.Fatalf("expected server limits to default: %#v", settings)
	}
}

func TestSettingsFromConfigUsesProjectValues(t *testing.T) {
	enabled := true
	cfg := &config.Config{}
	cfg.Project.Bridge = config.BridgeConfig{Enabled: &enabled, Host: "localhost", Port: 7000}
	settings := SettingsFromConfig(cfg)
	if settings.Host != "localhost" || settings.Port != 7000 || !settings.Enabled {
		t.Fatalf("unexpected settings: %#v", settings)
	}
	if settings.URL() != "http://localhost:7000" {
		t.Fatalf("unexpected url %s", settings.URL())
	}
}

func TestSettingsFromConfigDefaults(t *testing.T) {
	for name, cfg := range map[string]*config.Config{"nil": nil, "empty": {}} {
		settings := SettingsFromConfig(cfg)
		if !settings.Enabled || settings.URL() != "http://127.0.0.1:8766" {
			t.Fatalf("%s: unexpected defaults %#v", name, settings)
		}
	}
}

func TestServerAcceptsEvents(t *testing.T) {
	t.Parallel()
	fixed := time.Unix(1730000000, 0).UTC()
	recorded := make(chan Event, 1)
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0, MaxBodyBytes: 1024, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewServer(settings,
		WithClock(func() time.Time { return fixed }),
		WithProcessor(EventProcessorFunc(func(e Event) error {
			recorded <- e
			return nil
		})))
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	base := srv.BaseURL()
	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	var health healthResponse
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health.Status != string(StatusReady) || !health.RouterReady {
		t.Fatalf("unexpected health %d %#v", resp.StatusCode, health)
	}
	payload := map[string]any{
		"type":       TypeSessionIdle,
		"properties": map[string]any{"sessionID": "ses-1"},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	resp, err = http.Post(base+"/events", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	var accepted eventResponse
	_ = json.NewDecoder(resp.Body).Decode(&accepted)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	select {
	case evt := <-recorded:
		if !evt.ServerTime.Equal(fixed) {
			t.Fatalf("expected server time %s, got %s", fixed, evt.ServerTime)
		}
		if evt.SessionID() != "ses-1" {
			t.Fatalf("expected session ses-1, got %q", evt.SessionID())
		}
		if evt.EventID == "" || evt.EventID != accepted.EventID {
			t.Fatalf("expected generated event id echoed, got %q vs %q", evt.EventID, accepted.EventID)
		}
	default:
		t.Fatalf("event not forwarded to processor")
	}
}

func TestServerRejectsBadEvents(t *testing.T) {
	t.Parallel()
	srv := NewServer(Settings{MaxBodyBytes: 1024})
	handler := srv.Handler()
	cases := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{name: "invalid json", method: http.MethodPost, body: `{`, want: http.StatusBadRequest},
		{name: "missing type", method: http.MethodPost, body: `{"properties":{}}`, want: http.StatusBadRequest},
		{name: "bad version", method: http.MethodPost, body: `{"version":3,"type":"session.idle"}`, want: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodGet, body: ``, want: http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/events", bytes.NewBufferString(tc.body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestServerReportsProcessorFailure(t *testing.T) {
	t.Parallel()
	srv := NewServer(Settings{MaxBodyBytes: 1024}, WithProcessor(EventProcessorFunc(func(Event) error {
		return context.DeadlineExceeded
	})))
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`{"type":"session.idle"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestServerSessionsEndpoint(t *testing.T) {
	t.Parallel()
	bare := NewServer(Settings{})
	rec := httptest.NewRecorder()
	bare.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without snapshot, got %d", rec.Code)
	}

	wired := NewServer(Settings{}, WithSessions(func() any {
		return []map[string]any{{"id": "ses-1", "counting_down": true}}
	}))
	rec = httptest.NewRecorder()
	wired.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != "ses-1" {
		t.Fatalf("unexpected sessions payload: %#v", got)
	}
}

func TestServerEnforcesPayloadLimit(t *testing.T) {
	t.Parallel()
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0, MaxBodyBytes: 64, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second}
	srv := NewServer(settings)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	base := srv.BaseURL()
	tooLarge := bytes.Repeat([]byte("a"), 512)
	payload := map[string]any{
		"type":       TypeSessionIdle,
		"properties": map[string]any{"sessionID": string(tooLarge)},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(base+"/events", "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestServerDisabled(t *testing.T) {
	t.Parallel()
	srv := NewServer(Settings{Enabled: false})
	if err := srv.Start(context.Background()); err != ErrServerDisabled {
		t.Fatalf("expected ErrServerDisabled, got %v", err)
	}
}
