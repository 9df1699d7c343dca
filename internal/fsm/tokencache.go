package fsm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fieldlink/internal/tenant/models"
	dErrors "fieldlink/pkg/domain-errors"
)

// CacheMetrics receives token-cache observations. The bridge's metrics
// package implements it; a nil-safe noop is used when none is wired.
type CacheMetrics interface {
	TokenCacheHit()
	TokenCacheMiss()
	ObserveTokenExchange(start time.Time)
}

// cacheKey identifies one cached machine-to-machine token. The credential is
// really scoped per installation, but keying on (account, company, cloud host)
// matches the header triple each data request carries; the accepted risk is
// sharing a token across installations of the same company on one host, which
// cannot happen while installations are unique per (account, host).
type cacheKey struct {
	accountID string
	companyID string
	cloudHost string
}

type cachedToken struct {
	token  string
	expiry time.Time
}

// TokenCache hands out machine-to-machine bearer tokens for the field-service
// platform, fetching via OAuth2 client-credentials on miss or expiry. It is
// the only shared mutable state in the process. Concurrent misses on one key
// may each fetch; the last writer wins, which is harmless because every
// fetched token is valid.
type TokenCache struct {
	tokenURL string
	client   *http.Client
	metrics  CacheMetrics

	mu      sync.RWMutex
	entries map[cacheKey]cachedToken

	// now is swappable for expiry tests.
	now func() time.Time
}

// TokenCacheOption customizes a TokenCache.
type TokenCacheOption func(*TokenCache)

// WithCacheMetrics wires metrics observation into the cache.
func WithCacheMetrics(m CacheMetrics) TokenCacheOption {
	return func(c *TokenCache) { c.metrics = m }
}

// WithClock overrides the cache's time source. Tests only.
func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) { c.now = now }
}

// NewTokenCache creates a cache that exchanges client credentials at tokenURL.
func NewTokenCache(tokenURL string, client *http.Client, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		tokenURL: tokenURL,
		client:   client,
		entries:  make(map[cacheKey]cachedToken),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a bearer token for the given installation, from cache when a
// live entry exists, otherwise via a fresh client-credentials exchange.
func (c *TokenCache) Get(ctx context.Context, accountID, companyID string, inst *models.Installation) (string, error) {
	key := cacheKey{accountID: accountID, companyID: companyID, cloudHost: inst.CloudHost}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expiry) {
		if c.metrics != nil {
			c.metrics.TokenCacheHit()
		}
		return entry.token, nil
	}
	if c.metrics != nil {
		c.metrics.TokenCacheMiss()
	}

	token, expiry, err := c.exchange(ctx, inst)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = cachedToken{token: token, expiry: expiry}
	c.mu.Unlock()

	return token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// exchange performs the OAuth2 client-credentials grant. The expiry is
// anchored at request start, not response arrival, so a slow token endpoint
// can only shorten the cached lifetime, never overestimate it.
func (c *TokenCache) exchange(ctx context.Context, inst *models.Installation) (string, time.Time, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(inst.ClientID, inst.ClientSecret)

	start := c.now()
	if c.metrics != nil {
		defer c.metrics.ObserveTokenExchange(start)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "token endpoint unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", time.Time{}, dErrors.New(dErrors.CodeUpstreamUnavailable, "token endpoint rejected client credentials")
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "malformed token response")
	}
	if tr.AccessToken == "" {
		return "", time.Time{}, dErrors.New(dErrors.CodeUpstreamUnavailable, "token response missing access_token")
	}

	return tr.AccessToken, start.Add(time.Duration(tr.ExpiresIn) * time.Second), nil
}
