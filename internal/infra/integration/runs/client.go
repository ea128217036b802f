package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the run/cost tracking service. Callers never surface its
// errors; tracking is best effort.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) CreateRun(ctx context.Context, in CreateRunInput) (string, error) {
	var out createRunResponse
	if err := c.do(ctx, http.MethodPost, "/v1/runs", in, &out); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return out.ID, nil
}

func (c *Client) CompleteRun(ctx context.Context, runID, status string) error {
	path := "/v1/runs/" + url.PathEscape(runID)
	if err := c.do(ctx, http.MethodPatch, path, completeRunRequest{Status: status}, nil); err != nil {
		return fmt.Errorf("complete run %s: %w", runID, err)
	}
	return nil
}

func (c *Client) AddCost(ctx context.Context, runID string, item CostItem) error {
	path := "/v1/runs/" + url.PathEscape(runID) + "/costs"
	if err := c.do(ctx, http.MethodPost, path, item, nil); err != nil {
		return fmt.Errorf("add cost to run %s: %w", runID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, dst any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
