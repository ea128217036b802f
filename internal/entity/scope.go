package entity

import "strings"

// ScopeMode selects the dedup boundary: the campaign namespace, or the brand
// when the deployment dedups across all campaigns of a brand.
type ScopeMode string

const (
	ScopeByNamespace ScopeMode = "namespace"
	ScopeByBrand     ScopeMode = "brand"
)

func ParseScopeMode(s string) ScopeMode {
	if strings.EqualFold(strings.TrimSpace(s), string(ScopeByBrand)) {
		return ScopeByBrand
	}
	return ScopeByNamespace
}

// Key falls back to the namespace when brand scoping is on but the caller
// did not name a brand.
func (m ScopeMode) Key(namespace, brandID string) string {
	if m == ScopeByBrand && strings.TrimSpace(brandID) != "" {
		return "brand:" + strings.TrimSpace(brandID)
	}
	return "ns:" + strings.TrimSpace(namespace)
}
