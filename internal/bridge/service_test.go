package bridge

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldlink/internal/correlation"
	"fieldlink/internal/credential"
	"fieldlink/internal/fsm"
	"fieldlink/internal/tenant/models"
	"fieldlink/internal/tenant/resolver"
	"fieldlink/internal/tenant/store"
	dErrors "fieldlink/pkg/domain-errors"
)

const baseURL = "https://bridge.example.com"

// fakeDirectory serves platform users from a map keyed by user id.
type fakeDirectory struct {
	users map[string]*fsm.User
}

func (d *fakeDirectory) GetUser(_ context.Context, _ string, _ *models.Company, userID string) (*fsm.User, error) {
	if u, ok := d.users[userID]; ok {
		return u, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "platform user not found")
}

// fakeIdP asserts a fixed email and records the parameters it saw.
type fakeIdP struct {
	email      string
	err        error
	lastState  string
	lastNonces []string
}

func (f *fakeIdP) AuthorizeURL(idp *models.IdentityProvider, redirectURI, state, nonce string) string {
	f.lastState = state
	f.lastNonces = append(f.lastNonces, nonce)
	return idp.AuthorizeURL + "?client_id=" + idp.ClientID +
		"&redirect_uri=" + url.QueryEscape(redirectURI) +
		"&state=" + url.QueryEscape(state) + "&nonce=" + url.QueryEscape(nonce)
}

func (f *fakeIdP) FetchEmail(_ context.Context, _ *models.IdentityProvider, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.email, nil
}

type fixture struct {
	svc  *Service
	idp  *fakeIdP
	dir  *fakeDirectory
	conn *models.Mapping
}

// newFixture builds a bridge over tenant "acme": account 1000, company 10 on
// the direct path, company 20 delegating to an external provider.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	mapping := &models.Mapping{
		ID:     "m-1",
		Domain: "acme.com",
		Label:  "Acme Field Ops",
		Users:  []string{"alice"},
		Account: &models.Account{
			ID:   "1000",
			Name: "acme",
			Installations: []models.Installation{
				{CloudHost: "eu.example.com", ClientID: "cid", ClientSecret: "sec", ClientVersion: "1.0"},
			},
			Companies: []models.Company{
				{ID: "10"},
				{ID: "20", IdentityProvider: &models.IdentityProvider{
					AuthorizeURL: "https://idp.acme.com/authorize",
					TokenURL:     "https://idp.acme.com/token",
					UserInfoURL:  "https://idp.acme.com/userinfo",
					ClientID:     "idp-client",
					ClientSecret: "idp-secret",
				}},
			},
		},
	}

	s := store.NewInMemory()
	s.Add(mapping)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	tenants := resolver.New(s, logger)

	dir := &fakeDirectory{users: map[string]*fsm.User{
		"42": {ID: "42", FirstName: "Alice", LastName: "Ng", Email: "alice@acme.com"},
	}}
	idp := &fakeIdP{email: "alice@acme.com"}
	issuer := credential.NewIssuer("test-key", "fieldlink-test", "fieldlink-test", 30*time.Minute)

	svc := New(tenants, dir, idp, issuer, baseURL, logger)
	return &fixture{svc: svc, idp: idp, dir: dir, conn: mapping}
}

func TestBeginAuthDirectPath(t *testing.T) {
	f := newFixture(t)

	u, err := f.svc.BeginAuth(context.Background(), correlation.Payload{
		CloudHost: "eu.example.com", AccountID: "1000", CompanyID: "10", UserID: "42",
	})
	require.NoError(t, err)

	// No provider configured: the URL points back at this service, not at
	// an external redirect.
	require.True(t, strings.HasPrefix(u, baseURL+"/auth/login/"), "got %q", u)

	state := strings.TrimPrefix(u, baseURL+"/auth/login/")
	unescaped, err := url.PathUnescape(state)
	require.NoError(t, err)
	p, err := correlation.Decode(unescaped)
	require.NoError(t, err)
	assert.Equal(t, "1000", p.AccountID)
	assert.Equal(t, "eu.example.com", p.CloudHost)
}

func TestBeginAuthDelegatedPath(t *testing.T) {
	f := newFixture(t)
	payload := correlation.Payload{CloudHost: "eu.example.com", AccountID: "1000", CompanyID: "20", UserID: "42"}

	u, err := f.svc.BeginAuth(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://idp.acme.com/authorize"), "got %q", u)

	p, err := correlation.Decode(f.idp.lastState)
	require.NoError(t, err)
	assert.Equal(t, "20", p.CompanyID)

	// Nonce is regenerated per attempt.
	_, err = f.svc.BeginAuth(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, f.idp.lastNonces, 2)
	assert.NotEqual(t, f.idp.lastNonces[0], f.idp.lastNonces[1])
}

func TestBeginAuthUnknownTenant(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BeginAuth(context.Background(), correlation.Payload{AccountID: "9999", CompanyID: "10"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = f.svc.BeginAuth(context.Background(), correlation.Payload{AccountID: "1000", CompanyID: "77"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func delegatedState() string {
	return correlation.Encode("1000", "20", "42", "eu.example.com")
}

func TestCompleteDelegatedIssues(t *testing.T) {
	f := newFixture(t)
	// Case differences between the provider assertion and the platform
	// record are not a mismatch.
	f.idp.email = "Alice@ACME.com"

	grant, err := f.svc.CompleteDelegated(context.Background(), "auth-code", delegatedState())
	require.NoError(t, err)
	assert.Equal(t, "Alice@ACME.com", grant.Email)
	assert.NotEmpty(t, grant.Token)
}

func TestCompleteDelegatedMismatch(t *testing.T) {
	f := newFixture(t)
	f.idp.email = "mallory@acme.com"

	_, err := f.svc.CompleteDelegated(context.Background(), "auth-code", delegatedState())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIdentityMismatch))
	// The message must not reveal which side disagreed.
	assert.Equal(t, "mismatched user credentials", err.Error())
}

func TestCompleteDelegatedParameterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CompleteDelegated(ctx, "", delegatedState())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), "missing code")

	_, err = f.svc.CompleteDelegated(ctx, "auth-code", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "missing state")

	_, err = f.svc.CompleteDelegated(ctx, "auth-code", "not-base64!!")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCorrelation), "malformed state")
}

func TestCompleteDelegatedProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.idp.err = dErrors.New(dErrors.CodeUpstreamAuth, "userinfo endpoint rejected the access token")

	_, err := f.svc.CompleteDelegated(context.Background(), "auth-code", delegatedState())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstreamAuth))
}

func TestCompleteDelegatedWithoutProviderConfigured(t *testing.T) {
	f := newFixture(t)
	state := correlation.Encode("1000", "10", "42", "eu.example.com")

	_, err := f.svc.CompleteDelegated(context.Background(), "auth-code", state)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
}

func TestCompleteDirectIssuesPlatformEmail(t *testing.T) {
	f := newFixture(t)
	state := correlation.Encode("1000", "10", "42", "eu.example.com")

	grant, err := f.svc.CompleteDirect(context.Background(), state)
	require.NoError(t, err)
	// The platform's email is asserted as-is; no secondary verification.
	assert.Equal(t, "alice@acme.com", grant.Email)
	assert.NotEmpty(t, grant.Token)
}

func TestCompleteDirectAbsentUser(t *testing.T) {
	f := newFixture(t)
	state := correlation.Encode("1000", "10", "no-such-user", "eu.example.com")

	_, err := f.svc.CompleteDirect(context.Background(), state)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	assert.Contains(t, err.Error(), "client id and client secret")
}

func TestCompleteDirectMalformedState(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CompleteDirect(context.Background(), "not-base64!!")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCorrelation))
}
