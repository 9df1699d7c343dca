// Package resolver turns raw tenant-store lookups into usable aggregates.
// Besides translating store errors into domain errors, it owns the one step
// every caller depends on and none may skip: rewiring the non-owning
// back-references after deserialization.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"fieldlink/internal/tenant/models"
	"fieldlink/internal/tenant/store"
	dErrors "fieldlink/pkg/domain-errors"
	"fieldlink/pkg/email"
)

// Resolver looks up tenant mappings by domain, account id, or end-user email.
type Resolver struct {
	store  store.Store
	logger *slog.Logger
}

func New(s store.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: s, logger: logger}
}

// ByDomain resolves a mapping from the registered collaboration domain.
func (r *Resolver) ByDomain(ctx context.Context, domain string) (*models.Mapping, error) {
	m, err := r.store.FindByDomain(ctx, domain)
	return r.finish(m, err, "no tenant registered for domain")
}

// ByAccountID resolves a mapping from the external field-service account id.
func (r *Resolver) ByAccountID(ctx context.Context, accountID string) (*models.Mapping, error) {
	m, err := r.store.FindByAccountID(ctx, accountID)
	return r.finish(m, err, "no tenant registered for account")
}

// ByEmail resolves a mapping from an end-user email address. The address is
// decomposed into local part and domain; the domain must match a registered
// tenant and the local part must appear in that tenant's user list. A tenant
// whose domain matches but whose user list does not is indistinguishable from
// no tenant at all, deliberately.
func (r *Resolver) ByEmail(ctx context.Context, address string) (*models.Mapping, error) {
	local, domain, ok := email.Split(address)
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "malformed email address")
	}

	m, err := r.store.FindByEmailDomain(ctx, domain)
	m, err = r.finish(m, err, "no tenant registered for email domain")
	if err != nil {
		return nil, err
	}

	if !m.HasUser(local) {
		return nil, dErrors.New(dErrors.CodeNotFound, "no tenant registered for email domain")
	}
	return m, nil
}

// finish translates store errors and performs the mandatory back-reference
// reconnection on every successful fetch.
func (r *Resolver) finish(m *models.Mapping, err error, notFoundMsg string) (*models.Mapping, error) {
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, notFoundMsg)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "tenant lookup failed")
	}
	models.Connect(m)
	return m, nil
}
