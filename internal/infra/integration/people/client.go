package people

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds the search/enrichment provider client. rps <= 0 disables
// client-side throttling.
func NewClient(apiKey, baseURL string, rps float64) *Client {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

// Search fetches one page of people matching the structured filters.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Filters == nil {
		req.Filters = map[string]any{}
	}

	var raw searchResponse
	if err := c.post(ctx, "/v1/people/search", req, &raw); err != nil {
		return nil, fmt.Errorf("people search page %d: %w", req.Page, err)
	}

	out := &SearchResponse{
		People:       make([]Person, 0, len(raw.People)),
		Page:         raw.Pagination.Page,
		TotalPages:   raw.Pagination.TotalPages,
		TotalEntries: raw.Pagination.TotalEntries,
		Done:         raw.Done,
	}
	if out.Page == 0 {
		out.Page = req.Page
	}
	for _, item := range raw.People {
		p, err := decodePerson(item)
		if err != nil {
			return nil, fmt.Errorf("people search: decode person: %w", err)
		}
		out.People = append(out.People, *p)
	}
	return out, nil
}

// Enrich asks the provider to reveal contact data for a known person id.
func (c *Client) Enrich(ctx context.Context, externalPersonID string) (*EnrichResponse, error) {
	var raw enrichResponse
	if err := c.post(ctx, "/v1/people/enrich", enrichRequest{ID: externalPersonID}, &raw); err != nil {
		return nil, fmt.Errorf("people enrich %s: %w", externalPersonID, err)
	}

	out := &EnrichResponse{Raw: raw.Person}
	if len(raw.Person) == 0 || string(raw.Person) == "null" {
		return out, nil
	}
	p, err := decodePerson(raw.Person)
	if err != nil {
		return nil, fmt.Errorf("people enrich: decode person: %w", err)
	}
	out.Person = p
	return out, nil
}

// ValidateFilters runs the provider's own filter validation.
func (c *Client) ValidateFilters(ctx context.Context, filters map[string]any) (*ValidationResult, error) {
	var res ValidationResult
	if err := c.post(ctx, "/v1/filters/validate", validateRequest{Filters: filters}, &res); err != nil {
		return nil, fmt.Errorf("people validate filters: %w", err)
	}
	return &res, nil
}

func (c *Client) post(ctx context.Context, path string, payload, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "leadbuffer/1.0")
}

func decodePerson(raw json.RawMessage) (*Person, error) {
	var p Person
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	p.Email = strings.TrimSpace(p.Email)
	p.Raw = raw
	return &p, nil
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}
