package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const OrganizationHeader = "X-Organization-Id"

type orgKey struct{}

// Tenant rejects requests without an organization header and stores the
// id on the request context.
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(OrganizationHeader))
		if orgID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "MISSING_ORGANIZATION",
				"message": OrganizationHeader + " header is required",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOrganizationID(r.Context(), orgID)))
	})
}

func WithOrganizationID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgKey{}, orgID)
}

func OrganizationID(ctx context.Context) string {
	id, _ := ctx.Value(orgKey{}).(string)
	return id
}
