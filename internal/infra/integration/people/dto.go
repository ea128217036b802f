package people

import "encoding/json"

// Person is one search hit or enrichment match. Email is frequently empty on
// search results; Raw keeps the provider's full object for the lead payload.
type Person struct {
	ID               string          `json:"id"`
	Email            string          `json:"email,omitempty"`
	FirstName        string          `json:"first_name,omitempty"`
	LastName         string          `json:"last_name,omitempty"`
	Title            string          `json:"title,omitempty"`
	OrganizationName string          `json:"organization_name,omitempty"`
	LinkedInURL      string          `json:"linkedin_url,omitempty"`
	Raw              json.RawMessage `json:"-"`
}

type SearchRequest struct {
	Filters map[string]any `json:"filters"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
}

type SearchResponse struct {
	People       []Person
	Page         int
	TotalPages   int
	TotalEntries int
	Done         bool
}

type EnrichResponse struct {
	// Person is nil when the provider could not match anyone.
	Person *Person
	Raw    json.RawMessage
}

type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type searchResponse struct {
	People     []json.RawMessage `json:"people"`
	Pagination struct {
		Page         int `json:"page"`
		PerPage      int `json:"per_page"`
		TotalEntries int `json:"total_entries"`
		TotalPages   int `json:"total_pages"`
	} `json:"pagination"`
	Done bool `json:"done"`
}

type enrichRequest struct {
	ID string `json:"id"`
}

type enrichResponse struct {
	Person json.RawMessage `json:"person"`
}

type validateRequest struct {
	Filters map[string]any `json:"filters"`
}
