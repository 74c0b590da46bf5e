package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kingrea/beads-continuation/internal/continuation"
)

// Fetcher returns the daemon's current session snapshot.
type Fetcher func(ctx context.Context) ([]continuation.SessionStatus, error)

// HTTPFetcher reads GET <baseURL>/sessions from a running bridge.
func HTTPFetcher(baseURL string, client *http.Client) Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/sessions"
	return func(ctx context.Context) ([]continuation.SessionStatus, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("monitor: build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("monitor: fetch sessions: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("monitor: fetch sessions: %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		var sessions []continuation.SessionStatus
		if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
			return nil, fmt.Errorf("monitor: decode sessions: %w", err)
		}
		return sessions, nil
	}
}
