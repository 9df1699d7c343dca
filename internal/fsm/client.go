package fsm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"fieldlink/internal/tenant/models"
	dErrors "fieldlink/pkg/domain-errors"
)

// Client reads business objects from the field-service platform's REST APIs.
// Every request carries a bearer token from the TokenCache plus the header
// quadruple identifying the installation: client id, client version, account,
// and company.
type Client struct {
	httpClient *http.Client
	tokens     *TokenCache
	versions   Versions
	logger     *slog.Logger

	// scheme is https outside of tests.
	scheme string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithVersions overrides the pinned data-model versions.
func WithVersions(v Versions) ClientOption {
	return func(c *Client) { c.versions = v }
}

// WithScheme overrides the URL scheme. Tests only.
func WithScheme(scheme string) ClientOption {
	return func(c *Client) { c.scheme = scheme }
}

// NewClient creates a field-service API client.
func NewClient(httpClient *http.Client, tokens *TokenCache, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: httpClient,
		tokens:     tokens,
		versions:   DefaultVersions,
		logger:     logger,
		scheme:     "https",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetUser fetches a platform login account by user number. A response the
// platform refuses to serve (missing user, rejected credentials) surfaces as
// not_found; the caller decides whether that means a configuration problem.
func (c *Client) GetUser(ctx context.Context, cloudHost string, company *models.Company, userID string) (*User, error) {
	account := company.Account
	install := account.FindInstallation(cloudHost)
	if install == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "no installation registered for cloud host")
	}

	u := fmt.Sprintf("%s://%s/api/user/v1/users/%s?account=%s",
		c.scheme, install.CloudHost, url.PathEscape(userID), url.QueryEscape(account.Name))
	req, err := c.newRequest(ctx, http.MethodGet, u, cloudHost, company, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "user lookup unreachable")
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, dErrors.New(dErrors.CodeNotFound, "platform user not found")
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "malformed user response")
	}
	return &user, nil
}

// GetActivity fetches one work activity.
func (c *Client) GetActivity(ctx context.Context, cloudHost string, company *models.Company, activityID string) (*Activity, error) {
	return getObject[Activity](ctx, c, cloudHost, company, "Activity", activityID, c.versions.Activity)
}

// GetContact fetches one business contact.
func (c *Client) GetContact(ctx context.Context, cloudHost string, company *models.Company, contactID string) (*Contact, error) {
	return getObject[Contact](ctx, c, cloudHost, company, "Contact", contactID, c.versions.Contact)
}

// GetPersons fetches several person records concurrently, one lookup per id,
// joining before returning. Persons the platform does not know are skipped;
// any transport-level failure aborts the whole fan-out.
func (c *Client) GetPersons(ctx context.Context, cloudHost string, company *models.Company, personIDs ...string) ([]*Person, error) {
	results := make([]*Person, len(personIDs))
	g, ctx := errgroup.WithContext(ctx)

	for i, personID := range personIDs {
		i, personID := i, personID
		g.Go(func() error {
			p, err := getObject[Person](ctx, c, cloudHost, company, "Person", personID, c.versions.Person)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeNotFound) {
					return nil
				}
				return err
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	persons := make([]*Person, 0, len(results))
	for _, p := range results {
		if p != nil {
			persons = append(persons, p)
		}
	}
	return persons, nil
}

// GetEquipmentCustomFields reads the named custom fields from an equipment
// record via the query API. The returned map holds only fields that carry a
// value; a missing equipment or an equipment without custom fields yields an
// empty map, not an error.
func (c *Client) GetEquipmentCustomFields(ctx context.Context, cloudHost string, company *models.Company, equipmentID string, fieldNames ...string) (map[string]string, error) {
	selects := make([]string, 0, len(fieldNames)+2)
	selects = append(selects, "eqp.id", "eqp.code")
	for _, name := range fieldNames {
		selects = append(selects, "eqp.udf."+name)
	}
	query := fmt.Sprintf("SELECT %s FROM Equipment eqp WHERE eqp.id = '%s'",
		strings.Join(selects, ", "), equipmentID)

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode equipment query")
	}

	u := fmt.Sprintf("%s://%s/api/query/v1?dtos=Equipment.%d", c.scheme, cloudHost, c.versions.Equipment)
	req, err := c.newRequest(ctx, http.MethodPost, u, cloudHost, company, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	result, err := decodeEnvelope[equipmentResult](c, req, "eqp")
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	fields := make(map[string]string, len(result.UDFValues))
	for _, udf := range result.UDFValues {
		if udf.Value != "" {
			fields[udf.Name] = udf.Value
		}
	}
	return fields, nil
}

// getObject fetches one object by id from the data API.
func getObject[T any](ctx context.Context, c *Client, cloudHost string, company *models.Company, objectName, objectID string, version int) (*T, error) {
	u := fmt.Sprintf("%s://%s/api/data/v4/%s/%s?dtos=%s.%d",
		c.scheme, cloudHost, objectName, url.PathEscape(objectID), objectName, version)
	req, err := c.newRequest(ctx, http.MethodGet, u, cloudHost, company, nil)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope[T](c, req, strings.ToLower(objectName))
}

// decodeEnvelope executes the request and unwraps the data API's envelope:
// {"data": [{"<key>": {...}}]}. An empty data array or a missing key is
// not_found.
func decodeEnvelope[T any](c *Client, req *http.Request, key string) (*T, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "data API unreachable")
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusNotFound {
			return nil, dErrors.New(dErrors.CodeNotFound, key+" not found")
		}
		return nil, dErrors.New(dErrors.CodeUpstreamUnavailable,
			fmt.Sprintf("data API returned status %d", resp.StatusCode))
	}

	var envelope struct {
		Data []map[string]json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "malformed data API response")
	}
	if len(envelope.Data) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, key+" not found")
	}

	raw, ok := envelope.Data[0][key]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, key+" not found")
	}

	obj := new(T)
	if err := json.Unmarshal(raw, obj); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "malformed "+key+" object")
	}
	return obj, nil
}

// newRequest builds a data-plane request with the standard header set and a
// cached bearer token for the installation serving cloudHost.
func (c *Client) newRequest(ctx context.Context, method, rawURL, cloudHost string, company *models.Company, body io.Reader) (*http.Request, error) {
	account := company.Account
	install := account.FindInstallation(cloudHost)
	if install == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "no installation registered for cloud host")
	}

	token, err := c.tokens.Get(ctx, account.ID, company.ID, install)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build data API request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Client-ID", install.ClientID)
	req.Header.Set("X-Client-Version", install.ClientVersion)
	req.Header.Set("X-Account-ID", account.ID)
	req.Header.Set("X-Company-ID", company.ID)
	return req, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
