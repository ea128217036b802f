package runs

type CreateRunInput struct {
	ParentRunID    string            `json:"parentRunId,omitempty"`
	OrganizationID string            `json:"organizationId"`
	Kind           string            `json:"kind"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type CostItem struct {
	Kind         string `json:"kind"` // enrichment, translation
	Quantity     int    `json:"quantity"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`
	Model        string `json:"model,omitempty"`
}

type completeRunRequest struct {
	Status string `json:"status"`
}

type createRunResponse struct {
	ID string `json:"id"`
}
