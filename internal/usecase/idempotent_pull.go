package usecase

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

const (
	DefaultIdempotencyTTL       = 24 * time.Hour
	DefaultIdempotencyPruneRate = 0.02
)

// IdempotentPullUseCase replays the stored response for a known
// Idempotency-Key instead of pulling again.
type IdempotentPullUseCase struct {
	Pull      Puller
	Records   entity.IdempotencyRepository
	TTL       time.Duration
	PruneRate float64

	// roll returns a number in [0, 1); overridden in tests.
	roll func() float64
}

func NewIdempotentPullUseCase(pull Puller, records entity.IdempotencyRepository, ttl time.Duration, pruneRate float64) *IdempotentPullUseCase {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotentPullUseCase{
		Pull:      pull,
		Records:   records,
		TTL:       ttl,
		PruneRate: pruneRate,
		roll:      rand.Float64,
	}
}

// Execute returns the JSON response body. replayed is true when the body
// came from an earlier request with the same key.
//
// The key is claimed before pulling, so a concurrent retry is told the
// first request is still running instead of serving a second lead.
func (uc *IdempotentPullUseCase) Execute(ctx context.Context, key string, input PullNextInput) (body []byte, replayed bool, err error) {
	input.trim()
	if key == "" {
		out, err := uc.Pull.Execute(ctx, input)
		if err != nil {
			return nil, false, err
		}
		body, err = json.Marshal(out)
		return body, false, err
	}

	if errs := ValidatePullNextInput(input); len(errs) > 0 {
		return nil, false, newValidationError(errs)
	}

	if body, ok, err := uc.lookup(ctx, key, input.OrganizationID); err != nil || ok {
		return body, ok, err
	}

	claimed, err := uc.Records.InsertIfAbsent(ctx, &entity.IdempotencyRecord{
		Key:            key,
		OrganizationID: input.OrganizationID,
		CreatedAt:      time.Now().UTC(),
	})
	switch {
	case err != nil:
		zap.L().Warn("idempotency key not claimed, pulling unprotected", zap.String("idempotency_key", key), zap.Error(err))
	case !claimed:
		// Lost the claim to a concurrent retry.
		body, ok, err := uc.lookup(ctx, key, input.OrganizationID)
		if err != nil || ok {
			return body, ok, err
		}
		return nil, false, errKeyInProgress()
	}

	out, err := uc.Pull.Execute(ctx, input)
	if err == nil {
		body, err = json.Marshal(out)
	}
	if err != nil {
		if claimed {
			uc.release(ctx, key)
		}
		return nil, false, err
	}

	if claimed {
		if err := uc.Records.Complete(ctx, key, body); err != nil {
			zap.L().Warn("idempotency record not stored", zap.String("idempotency_key", key), zap.Error(err))
		}
	}

	uc.maybePrune(ctx)
	return body, false, nil
}

// lookup reports a replayable response. A pending claim from the same
// organization is an error, since its answer does not exist yet.
func (uc *IdempotentPullUseCase) lookup(ctx context.Context, key, orgID string) ([]byte, bool, error) {
	rec, err := uc.Records.Find(ctx, key)
	if err != nil {
		return nil, false, newDatabaseError("failed to read idempotency record", err)
	}
	if rec == nil {
		return nil, false, nil
	}
	if rec.OrganizationID != orgID {
		return nil, false, &DomainError{
			Code:    "IDEMPOTENCY_KEY_CONFLICT",
			Message: "idempotency key already used by another organization",
		}
	}
	if rec.Pending() {
		return nil, false, errKeyInProgress()
	}
	return rec.Response, true, nil
}

func (uc *IdempotentPullUseCase) release(ctx context.Context, key string) {
	if err := uc.Records.Release(context.WithoutCancel(ctx), key); err != nil {
		zap.L().Warn("idempotency claim not released", zap.String("idempotency_key", key), zap.Error(err))
	}
}

func errKeyInProgress() *DomainError {
	return &DomainError{
		Code:    "IDEMPOTENCY_KEY_IN_PROGRESS",
		Message: "a request with this idempotency key is still running",
	}
}

func (uc *IdempotentPullUseCase) maybePrune(ctx context.Context) {
	if uc.PruneRate <= 0 || uc.roll() >= uc.PruneRate {
		return
	}
	cutoff := time.Now().UTC().Add(-uc.TTL)
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		n, err := uc.Records.PruneOlderThan(ctx, cutoff)
		if err != nil {
			zap.L().Warn("idempotency prune failed", zap.Error(err))
			return
		}
		zap.L().Debug("idempotency records pruned", zap.Int64("deleted", n))
	}()
}
