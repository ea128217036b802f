package entity

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrLeadAlreadyBuffered = errors.New("lead already buffered")
	// ErrEnrichmentEmailTaken means the address is cached under another
	// person id, so this person could not be cached.
	ErrEnrichmentEmailTaken = errors.New("enrichment email cached for another person")
)
