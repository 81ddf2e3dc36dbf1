// Package dispatch starts remote ingestion sessions through GitHub's
// repository_dispatch API.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"punktlich/internal/httpclient"
)

// EventIngestion is the event type the ingestion workflow listens for.
const EventIngestion = "run-ingestion"

var ErrMissingToken = errors.New("github token missing")

type GitHub struct {
	apiURL string
	repo   string
	token  string
	base   *http.Client
}

// NewGitHub returns a trigger for repo ("owner/name"). base may be nil.
func NewGitHub(apiURL, repo, token string, base *http.Client) *GitHub {
	if base == nil {
		base = &http.Client{Timeout: 15 * time.Second}
	}
	return &GitHub{
		apiURL: strings.TrimRight(apiURL, "/"),
		repo:   repo,
		token:  token,
		base:   base,
	}
}

type dispatchRequest struct {
	EventType     string         `json:"event_type"`
	ClientPayload map[string]any `json:"client_payload,omitempty"`
}

// Trigger sends a repository_dispatch event. GitHub answers 204 on success.
func (g *GitHub) Trigger(ctx context.Context) error {
	if g.token == "" {
		return ErrMissingToken
	}
	body, err := json.Marshal(dispatchRequest{EventType: EventIngestion})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/repos/%s/dispatches", g.apiURL, g.repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := httpclient.Do(g.client(ctx), req)
	if err != nil {
		return fmt.Errorf("repository dispatch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("repository dispatch: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (g *GitHub) client(ctx context.Context) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.token}))
}
