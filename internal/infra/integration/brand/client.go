package brand

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client reads campaign and brand metadata. Callers treat every error as
// "no context available".
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

func (c *Client) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	var out Campaign
	if err := c.get(ctx, "/v1/campaigns/"+url.PathEscape(id), &out); err != nil {
		return nil, fmt.Errorf("get campaign %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) GetBrand(ctx context.Context, id string) (*Brand, error) {
	var out Brand
	if err := c.get(ctx, "/v1/brands/"+url.PathEscape(id), &out); err != nil {
		return nil, fmt.Errorf("get brand %s: %w", id, err)
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
