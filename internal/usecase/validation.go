package usecase

import (
	"fmt"
	"net/mail"
	"strings"
)

const (
	maxNamespaceLength = 200
	maxPushBatch       = 1000
	maxPerPage         = 100
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ValidatePushLeadsInput(input PushLeadsInput) []ValidationError {
	var errors []ValidationError

	errors = append(errors, validateTenant(input.OrganizationID, input.Namespace)...)

	if len(input.Leads) == 0 {
		errors = append(errors, ValidationError{"leads", "must contain at least one lead"})
	} else if len(input.Leads) > maxPushBatch {
		errors = append(errors, ValidationError{"leads", fmt.Sprintf("must not exceed %d leads", maxPushBatch)})
	}

	for i, lead := range input.Leads {
		field := fmt.Sprintf("leads[%d]", i)
		email := strings.TrimSpace(lead.Email)
		if email == "" {
			if strings.TrimSpace(lead.ExternalPersonID) == "" {
				errors = append(errors, ValidationError{field + ".email", "is required when externalPersonId is empty"})
			}
			continue
		}
		addr, err := mail.ParseAddress(email)
		if err != nil {
			errors = append(errors, ValidationError{field + ".email", "is invalid"})
		} else if addr.Address != email {
			errors = append(errors, ValidationError{field + ".email", "must be a bare address without a display name"})
		}
	}

	return errors
}

func ValidatePullNextInput(input PullNextInput) []ValidationError {
	errors := validateTenant(input.OrganizationID, input.Namespace)

	if input.Backfill != nil && input.Backfill.PerPage != 0 {
		if input.Backfill.PerPage < 1 || input.Backfill.PerPage > maxPerPage {
			errors = append(errors, ValidationError{"backfill.perPage", fmt.Sprintf("must be between 1 and %d", maxPerPage)})
		}
	}

	return errors
}

func validateTenant(orgID, namespace string) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(orgID) == "" {
		errors = append(errors, ValidationError{"organizationId", "is required"})
	}
	if strings.TrimSpace(namespace) == "" {
		errors = append(errors, ValidationError{"namespace", "is required"})
	} else if len(namespace) > maxNamespaceLength {
		errors = append(errors, ValidationError{"namespace", fmt.Sprintf("must not exceed %d characters", maxNamespaceLength)})
	}

	return errors
}
