// Package bridge orchestrates one authentication attempt: resolve the tenant,
// pick the delegated (OpenID Connect) or direct trust path, verify the
// caller's identity, and mint the internal credential.
package bridge

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fieldlink/internal/bridge/metrics"
	"fieldlink/internal/correlation"
	"fieldlink/internal/credential"
	"fieldlink/internal/fsm"
	"fieldlink/internal/tenant/models"
	dErrors "fieldlink/pkg/domain-errors"
	"fieldlink/pkg/email"
)

// TenantResolver is the slice of the resolver the bridge needs.
type TenantResolver interface {
	ByAccountID(ctx context.Context, accountID string) (*models.Mapping, error)
}

// PlatformDirectory looks up login accounts on the field-service platform.
type PlatformDirectory interface {
	GetUser(ctx context.Context, cloudHost string, company *models.Company, userID string) (*fsm.User, error)
}

// IdentityProviderClient is the delegated-path provider interaction.
type IdentityProviderClient interface {
	AuthorizeURL(idp *models.IdentityProvider, redirectURI, state, nonce string) string
	FetchEmail(ctx context.Context, idp *models.IdentityProvider, code, redirectURI string) (string, error)
}

// CredentialIssuer mints the internal credential once identity is
// established.
type CredentialIssuer interface {
	Issue(email string) (*credential.Grant, error)
}

const (
	pathDelegated = "delegated"
	pathDirect    = "direct"
)

// Service is the identity bridge. It is stateless across requests; every
// attempt is decided by the tenant record and the upstream calls alone.
type Service struct {
	tenants  TenantResolver
	platform PlatformDirectory
	idp      IdentityProviderClient
	issuer   CredentialIssuer
	baseURL  string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics wires prometheus observation into the bridge.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates the bridge service. baseURL is this service's externally
// reachable URL; callback and direct-login URLs are derived from it.
func New(tenants TenantResolver, platform PlatformDirectory, idp IdentityProviderClient, issuer CredentialIssuer, baseURL string, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		tenants:  tenants,
		platform: platform,
		idp:      idp,
		issuer:   issuer,
		baseURL:  baseURL,
		logger:   logger,
		tracer:   otel.Tracer("fieldlink/bridge"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BeginAuth resolves the company unit for the caller's identifiers and
// returns the URL to follow: the external provider's authorize URL when the
// company delegates authentication, or this service's direct-login URL when
// it does not.
func (s *Service) BeginAuth(ctx context.Context, p correlation.Payload) (string, error) {
	ctx, span := s.tracer.Start(ctx, "bridge.BeginAuth",
		trace.WithAttributes(attribute.String("account_id", p.AccountID), attribute.String("company_id", p.CompanyID)))
	defer span.End()

	company, err := s.resolveCompany(ctx, p.AccountID, p.CompanyID)
	if err != nil {
		return "", err
	}

	state := correlation.Encode(p.AccountID, p.CompanyID, p.UserID, p.CloudHost)

	if company.IdentityProvider == nil {
		// The tenant opted for the lower-assurance direct path; we will
		// still verify platform access before issuing anything.
		return s.baseURL + "/auth/login/" + url.PathEscape(state), nil
	}

	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	return s.idp.AuthorizeURL(company.IdentityProvider, s.callbackURL(), state, nonce), nil
}

// CompleteDelegated finishes an attempt that went through an external
// provider. The provider-asserted email must agree, case-insensitively, with
// the platform's own record for the user id carried in the state: possession
// of a platform account alone is not sufficient.
func (s *Service) CompleteDelegated(ctx context.Context, code, state string) (*credential.Grant, error) {
	ctx, span := s.tracer.Start(ctx, "bridge.CompleteDelegated")
	defer span.End()

	if code == "" {
		return nil, s.fail(ctx, pathDelegated, dErrors.New(dErrors.CodeBadRequest, "missing authorization code"))
	}
	if state == "" {
		return nil, s.fail(ctx, pathDelegated, dErrors.New(dErrors.CodeNotFound, "missing state"))
	}

	p, err := correlation.Decode(state)
	if err != nil {
		// Security-relevant: someone presented a state we never minted.
		s.logger.WarnContext(ctx, "rejected malformed correlation state", "error", err)
		return nil, s.fail(ctx, pathDelegated, err)
	}

	company, err := s.resolveCompany(ctx, p.AccountID, p.CompanyID)
	if err != nil {
		return nil, s.fail(ctx, pathDelegated, err)
	}
	if company.IdentityProvider == nil {
		return nil, s.fail(ctx, pathDelegated, dErrors.New(dErrors.CodeConfiguration, "company has no identity provider configured"))
	}

	asserted, err := s.idp.FetchEmail(ctx, company.IdentityProvider, code, s.callbackURL())
	if err != nil {
		return nil, s.fail(ctx, pathDelegated, err)
	}

	user, err := s.platform.GetUser(ctx, p.CloudHost, company, p.UserID)
	if err != nil {
		return nil, s.fail(ctx, pathDelegated, err)
	}

	if !email.Equal(user.Email, asserted) {
		// Which side disagreed is deliberately not disclosed.
		return nil, s.fail(ctx, pathDelegated, dErrors.New(dErrors.CodeIdentityMismatch, "mismatched user credentials"))
	}

	return s.issued(ctx, pathDelegated, asserted)
}

// CompleteDirect finishes an attempt for a tenant without an external
// provider. The only check is that the user exists on the field-service
// platform and that we can reach it with the tenant's client credentials; the
// platform-reported email becomes the asserted identity.
func (s *Service) CompleteDirect(ctx context.Context, state string) (*credential.Grant, error) {
	ctx, span := s.tracer.Start(ctx, "bridge.CompleteDirect")
	defer span.End()

	p, err := correlation.Decode(state)
	if err != nil {
		s.logger.WarnContext(ctx, "rejected malformed correlation state", "error", err)
		return nil, s.fail(ctx, pathDirect, err)
	}

	company, err := s.resolveCompany(ctx, p.AccountID, p.CompanyID)
	if err != nil {
		return nil, s.fail(ctx, pathDirect, err)
	}

	user, err := s.platform.GetUser(ctx, p.CloudHost, company, p.UserID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			err = dErrors.New(dErrors.CodeConfiguration,
				"access to the field-service data API not allowed: verify the configured client id and client secret")
		}
		return nil, s.fail(ctx, pathDirect, err)
	}

	return s.issued(ctx, pathDirect, user.Email)
}

func (s *Service) resolveCompany(ctx context.Context, accountID, companyID string) (*models.Company, error) {
	mapping, err := s.tenants.ByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var company *models.Company
	if mapping.Account != nil {
		company = mapping.Account.FindCompany(companyID)
	}
	if company == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "company not registered for account")
	}
	return company, nil
}

func (s *Service) issued(ctx context.Context, path, assertedEmail string) (*credential.Grant, error) {
	grant, err := s.issuer.Issue(assertedEmail)
	if err != nil {
		return nil, s.fail(ctx, path, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveAuth(path, "issued")
	}
	s.logger.InfoContext(ctx, "credential issued", "path", path)
	return grant, nil
}

// fail records the outcome and passes the error through unchanged.
func (s *Service) fail(_ context.Context, path string, err error) error {
	if s.metrics != nil {
		outcome := "error"
		var dErr *dErrors.Error
		if errors.As(err, &dErr) {
			outcome = string(dErr.Code)
		}
		s.metrics.ObserveAuth(path, outcome)
	}
	return err
}

func (s *Service) callbackURL() string {
	return s.baseURL + "/auth/callback"
}

// newNonce returns 20 cryptographically random bytes, base64 encoded. One per
// attempt, never reused, never logged.
func newNonce() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate nonce")
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
