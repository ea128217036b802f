package delivery

type StatusItem struct {
	Email  string `json:"email"`
	LeadID string `json:"leadId,omitempty"`
}

type ScopeFlags struct {
	Contacted bool `json:"contacted"`
	Delivered bool `json:"delivered"`
}

type ChannelStatus struct {
	Campaign ScopeFlags `json:"campaign"`
	Brand    ScopeFlags `json:"brand"`
	Global   ScopeFlags `json:"global"`
}

type StatusResult struct {
	Email         string        `json:"email"`
	LeadID        string        `json:"leadId,omitempty"`
	Broadcast     ChannelStatus `json:"broadcast"`
	Transactional ChannelStatus `json:"transactional"`
}

// AlreadyReached reports whether the address was contacted or delivered to
// on any channel and in any scope.
func (r StatusResult) AlreadyReached() bool {
	for _, ch := range []ChannelStatus{r.Broadcast, r.Transactional} {
		for _, f := range []ScopeFlags{ch.Campaign, ch.Brand, ch.Global} {
			if f.Contacted || f.Delivered {
				return true
			}
		}
	}
	return false
}

type statusRequest struct {
	ScopeID string       `json:"scopeId"`
	Items   []StatusItem `json:"items"`
}

type statusResponse struct {
	Results []StatusResult `json:"results"`
}
