// Package client talks to the floor server's HTTP API from observers.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-floor/internal/model"
)

// SnapshotClient fetches /v1/snapshot.  It satisfies feed.SnapshotFetcher.
type SnapshotClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewSnapshotClient returns a client for the server at baseURL that
// authenticates with the bearer token.
func NewSnapshotClient(baseURL, token string) *SnapshotClient {
	return &SnapshotClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchSnapshot requests a full snapshot.
func (c *SnapshotClient) FetchSnapshot(ctx context.Context) (model.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/snapshot", nil)
	if err != nil {
		return model.Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Snapshot{}, fmt.Errorf("snapshot: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var snap model.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
