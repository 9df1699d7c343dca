// Package store provides read access to provisioned tenant mapping records.
// Records are created and updated by an external provisioning process; this
// service only ever reads them.
package store

import (
	"context"
	"errors"

	"fieldlink/internal/tenant/models"
)

// ErrNotFound is returned when no mapping matches a lookup. Callers translate
// it into a domain not_found error at the resolver layer.
var ErrNotFound = errors.New("tenant mapping not found")

// Store is the lookup interface over the tenant-mapping collection. All
// lookups are read-only, single-record queries; when the backing collection
// holds duplicates the first match wins (a data-quality problem, not one this
// layer resolves).
//
// Implementations return records exactly as deserialized: back-references are
// NOT wired. The resolver owns that step.
type Store interface {
	FindByDomain(ctx context.Context, domain string) (*models.Mapping, error)
	FindByAccountID(ctx context.Context, accountID string) (*models.Mapping, error)
	FindByEmailDomain(ctx context.Context, emailDomain string) (*models.Mapping, error)
}
