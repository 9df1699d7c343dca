package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"fieldlink/internal/tenant/models"
	dErrors "fieldlink/pkg/domain-errors"
)

// OIDCClient talks to a tenant-configured OpenID Connect provider: it builds
// the authorize URL faced by the end user, exchanges the authorization code,
// and reads the email claim from the userinfo endpoint.
type OIDCClient struct {
	httpClient *http.Client
}

func NewOIDCClient(httpClient *http.Client) *OIDCClient {
	return &OIDCClient{httpClient: httpClient}
}

// config maps a tenant's provider record onto an oauth2 client configuration.
// Credentials go in the POST body; several providers reject basic auth on the
// token endpoint.
func (c *OIDCClient) config(idp *models.IdentityProvider, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     idp.ClientID,
		ClientSecret: idp.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   idp.AuthorizeURL,
			TokenURL:  idp.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizeURL builds the provider's authorize URL for one attempt. The state
// is the correlation token; the nonce is fresh per attempt and never reused.
func (c *OIDCClient) AuthorizeURL(idp *models.IdentityProvider, redirectURI, state, nonce string) string {
	return c.config(idp, redirectURI).AuthCodeURL(state, oauth2.SetAuthURLParam("nonce", nonce))
}

// FetchEmail exchanges the authorization code and resolves the authenticated
// user's email from the userinfo endpoint, preferring the email claim and
// falling back to preferred_username. Every provider-side failure is an
// upstream_auth_failure: terminal for this attempt, retryable only by
// starting a fresh one.
func (c *OIDCClient) FetchEmail(ctx context.Context, idp *models.IdentityProvider, code, redirectURI string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.config(idp, redirectURI).Exchange(ctx, code)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstreamAuth, "authorization code exchange failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, idp.UserInfoURL, nil)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build userinfo request")
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstreamAuth, "userinfo endpoint unreachable")
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", dErrors.New(dErrors.CodeUpstreamAuth, "userinfo endpoint rejected the access token")
	}

	var claims struct {
		Email             string `json:"email"`
		PreferredUsername string `json:"preferred_username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstreamAuth, "malformed userinfo response")
	}

	switch {
	case claims.Email != "":
		return claims.Email, nil
	case claims.PreferredUsername != "":
		return claims.PreferredUsername, nil
	default:
		return "", dErrors.New(dErrors.CodeUpstreamAuth, "identity provider supplied no email claim")
	}
}
