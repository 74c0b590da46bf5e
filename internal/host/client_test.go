package host

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type captured struct {
	method string
	path   string
	body   map[string]any
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, chan captured) {
	t.Helper()
	reqs := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		reqs <- captured{method: r.Method, path: r.URL.EscapedPath(), body: body}
		w.WriteHeader(status)
		if status >= 300 {
			_, _ = w.Write([]byte("session not found\n"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, reqs
}

func TestShowToastPostsWireShape(t *testing.T) {
	t.Parallel()

	srv, reqs := newCaptureServer(t, http.StatusOK)
	client := NewClient(srv.URL + "/")
	toast := Toast{Title: "Beads Continuation", Message: "Resuming in 2s...", Variant: VariantWarning, Duration: 900 * time.Millisecond}
	if err := client.ShowToast(context.Background(), toast); err != nil {
		t.Fatalf("ShowToast returned error: %v", err)
	}
	got := <-reqs
	if got.method != http.MethodPost || got.path != "/tui/show-toast" {
		t.Fatalf("unexpected request %s %s", got.method, got.path)
	}
	if got.body["title"] != "Beads Continuation" || got.body["variant"] != "warning" {
		t.Fatalf("unexpected body: %#v", got.body)
	}
	if got.body["duration"] != float64(900) {
		t.Fatalf("expected duration 900ms, got %#v", got.body["duration"])
	}
}

func TestPromptPostsTextParts(t *testing.T) {
	t.Parallel()

	srv, reqs := newCaptureServer(t, http.StatusOK)
	client := NewClient(srv.URL)
	if err := client.Prompt(context.Background(), "ses/1", []Part{TextPart("keep going")}); err != nil {
		t.Fatalf("Prompt returned error: %v", err)
	}
	got := <-reqs
	if got.path != "/session/ses%2F1/message" {
		t.Fatalf("unexpected path %s", got.path)
	}
	parts, ok := got.body["parts"].([]any)
	if !ok || len(parts) != 1 {
		t.Fatalf("expected one part, got %#v", got.body["parts"])
	}
	part := parts[0].(map[string]any)
	if part["type"] != "text" || part["text"] != "keep going" {
		t.Fatalf("unexpected part: %#v", part)
	}
}

func TestPromptSurfacesHostErrors(t *testing.T) {
	t.Parallel()

	srv, _ := newCaptureServer(t, http.StatusNotFound)
	client := NewClient(srv.URL)
	err := client.Prompt(context.Background(), "missing", []Part{TextPart("x")})
	if err == nil {
		t.Fatalf("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "session not found") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
	if err := client.Prompt(context.Background(), "  ", nil); err == nil {
		t.Fatalf("expected error for empty session id")
	}
}

func TestNewClientDefaultsURL(t *testing.T) {
	t.Parallel()

	if got := NewClient("").BaseURL(); got != DefaultURL {
		t.Fatalf("expected default url, got %s", got)
	}
}

func TestConsoleNotifierRendersToastAndPrompt(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	notifier := NewConsoleNotifier(&buf)
	if err := notifier.ShowToast(context.Background(), Toast{Title: "Beads Continuation", Message: "Resuming in 1s...", Variant: VariantWarning}); err != nil {
		t.Fatalf("ShowToast returned error: %v", err)
	}
	if err := notifier.Prompt(context.Background(), "ses-1", []Part{TextPart("bd-abc123")}); err != nil {
		t.Fatalf("Prompt returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Beads Continuation", "Resuming in 1s...", "ses-1", "bd-abc123"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
