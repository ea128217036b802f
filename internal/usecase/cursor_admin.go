package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadbuffer/internal/entity"
)

// CursorAdminUseCase is the operator surface over the durable page cursor.
type CursorAdminUseCase struct {
	Cursors entity.CursorRepository
}

func (uc *CursorAdminUseCase) Get(ctx context.Context, orgID, namespace string) (*entity.CursorState, error) {
	orgID, namespace = strings.TrimSpace(orgID), strings.TrimSpace(namespace)
	if errs := validateTenant(orgID, namespace); len(errs) > 0 {
		return nil, newValidationError(errs)
	}
	cursor, err := uc.Cursors.Get(ctx, orgID, namespace)
	if err != nil {
		return nil, newDatabaseError("failed to load cursor", err)
	}
	if cursor == nil {
		return nil, entity.ErrNotFound
	}
	return cursor, nil
}

// Put overwrites page and exhausted while keeping the stored filter
// fingerprint, so the next backfill resumes where the operator pointed.
func (uc *CursorAdminUseCase) Put(ctx context.Context, input CursorInput) (*entity.CursorState, error) {
	input.OrganizationID = strings.TrimSpace(input.OrganizationID)
	input.Namespace = strings.TrimSpace(input.Namespace)
	errs := validateTenant(input.OrganizationID, input.Namespace)
	if input.Page < 1 {
		errs = append(errs, ValidationError{"page", "must be at least 1"})
	}
	if len(errs) > 0 {
		return nil, newValidationError(errs)
	}

	cursor, err := uc.Cursors.Get(ctx, input.OrganizationID, input.Namespace)
	if err != nil {
		return nil, newDatabaseError("failed to load cursor", err)
	}
	if cursor == nil {
		cursor = entity.NewCursorState(input.OrganizationID, input.Namespace, "")
	}
	cursor.Page = input.Page
	cursor.Exhausted = input.Exhausted
	cursor.UpdatedAt = time.Now().UTC()

	if err := uc.Cursors.Save(ctx, cursor); err != nil {
		return nil, newDatabaseError("failed to save cursor", err)
	}
	zap.L().Info("cursor overwritten",
		zap.String("organization_id", input.OrganizationID),
		zap.String("namespace", input.Namespace),
		zap.Int("page", input.Page),
		zap.Bool("exhausted", input.Exhausted),
	)
	return cursor, nil
}

func (uc *CursorAdminUseCase) Reset(ctx context.Context, orgID, namespace string) error {
	orgID, namespace = strings.TrimSpace(orgID), strings.TrimSpace(namespace)
	if errs := validateTenant(orgID, namespace); len(errs) > 0 {
		return newValidationError(errs)
	}
	if err := uc.Cursors.Reset(ctx, orgID, namespace); err != nil {
		return newDatabaseError("failed to reset cursor", err)
	}
	zap.L().Info("cursor reset", zap.String("organization_id", orgID), zap.String("namespace", namespace))
	return nil
}
