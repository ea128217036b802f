package usecase

import (
	"encoding/json"

	"github.com/xavierca1/leadbuffer/internal/entity"
	"github.com/xavierca1/leadbuffer/internal/infra/integration/people"
)

// mergePayload overlays the enrichment fields onto the provider payload.
// Non-object payloads are replaced rather than merged.
func mergePayload(base json.RawMessage, overlay map[string]any) json.RawMessage {
	merged := map[string]any{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil || merged == nil {
			merged = map[string]any{}
		}
	}
	for k, v := range overlay {
		if v == nil || v == "" {
			continue
		}
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return base
	}
	return out
}

func enrichmentFields(e *entity.Enrichment) map[string]any {
	return map[string]any{
		"email":             e.EmailValue(),
		"first_name":        e.FirstName,
		"last_name":         e.LastName,
		"title":             e.Title,
		"organization_name": e.OrganizationName,
	}
}

func enrichmentFromResponse(externalPersonID string, resp *people.EnrichResponse) *entity.Enrichment {
	if resp == nil || resp.Person == nil {
		return entity.NewEnrichment(externalPersonID, "")
	}
	p := resp.Person
	e := entity.NewEnrichment(externalPersonID, p.Email)
	e.FirstName = p.FirstName
	e.LastName = p.LastName
	e.Title = p.Title
	e.OrganizationName = p.OrganizationName
	e.RawResponse = resp.Raw
	return e
}
