package entity

import (
	"context"
	"encoding/json"
	"time"
)

type IdempotencyRecord struct {
	Key            string          `json:"key"`
	OrganizationID string          `json:"organizationId"`
	Response       json.RawMessage `json:"response"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Pending reports a key claimed by a request that has not answered yet.
func (r *IdempotencyRecord) Pending() bool {
	return len(r.Response) == 0
}

type IdempotencyRepository interface {
	// Find returns nil, nil when the key was never stored.
	Find(ctx context.Context, key string) (*IdempotencyRecord, error)
	// InsertIfAbsent with an empty Response claims the key.
	InsertIfAbsent(ctx context.Context, rec *IdempotencyRecord) (bool, error)
	// Complete stores the response of a pending claim.
	Complete(ctx context.Context, key string, response []byte) error
	// Release drops a claim that is still pending.
	Release(ctx context.Context, key string) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
