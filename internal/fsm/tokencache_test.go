package fsm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldlink/internal/tenant/models"
	dErrors "fieldlink/pkg/domain-errors"
)

func tokenEndpoint(t *testing.T, calls *atomic.Int64, expiresIn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "expected HTTP basic auth")
		assert.Equal(t, "cid", user)
		assert.Equal(t, "sec", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-1","expires_in":%d,"token_type":"bearer"}`, expiresIn)
	}))
}

func testInstallation() *models.Installation {
	return &models.Installation{CloudHost: "eu.example.com", ClientID: "cid", ClientSecret: "sec", ClientVersion: "1.0"}
}

func TestGetCachesUntilExpiry(t *testing.T) {
	var calls atomic.Int64
	srv := tokenEndpoint(t, &calls, 3600)
	defer srv.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := NewTokenCache(srv.URL, srv.Client(), WithClock(clock))
	ctx := context.Background()

	tok, err := cache.Get(ctx, "1000", "10", testInstallation())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.EqualValues(t, 1, calls.Load())

	// Second call within the lifetime must not touch the network.
	tok, err = cache.Get(ctx, "1000", "10", testInstallation())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.EqualValues(t, 1, calls.Load())

	// Step past the expiry instant: exactly one fresh exchange.
	now = now.Add(3601 * time.Second)
	_, err = cache.Get(ctx, "1000", "10", testInstallation())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGetKeysPerTenantInstallation(t *testing.T) {
	var calls atomic.Int64
	srv := tokenEndpoint(t, &calls, 3600)
	defer srv.Close()

	cache := NewTokenCache(srv.URL, srv.Client())
	ctx := context.Background()

	_, err := cache.Get(ctx, "1000", "10", testInstallation())
	require.NoError(t, err)
	_, err = cache.Get(ctx, "1000", "11", testInstallation())
	require.NoError(t, err)
	_, err = cache.Get(ctx, "2000", "10", testInstallation())
	require.NoError(t, err)

	// Distinct (account, company, host) triples never share an entry.
	assert.EqualValues(t, 3, calls.Load())
}

func TestExpiryAnchoredAtRequestStart(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Simulate a slow token endpoint: time advances while the
		// request is in flight.
		advance(30 * time.Second)
		_, _ = w.Write([]byte(`{"access_token":"tok-slow","expires_in":60}`))
	}))
	defer srv.Close()

	cache := NewTokenCache(srv.URL, srv.Client(), WithClock(clock))
	ctx := context.Background()

	_, err := cache.Get(ctx, "1000", "10", testInstallation())
	require.NoError(t, err)

	// 31 seconds after response arrival is 61 seconds after request start,
	// so the entry must already be treated as expired.
	advance(31 * time.Second)
	var calls atomic.Int64
	refresh := tokenEndpoint(t, &calls, 60)
	defer refresh.Close()
	cache.tokenURL = refresh.URL
	cache.client = refresh.Client()

	_, err = cache.Get(ctx, "1000", "10", testInstallation())
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load(), "expired entry must force a fresh exchange")
}

func TestNon2xxIsUpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad client", http.StatusUnauthorized)
	}))
	defer srv.Close()

	cache := NewTokenCache(srv.URL, srv.Client())
	_, err := cache.Get(context.Background(), "1000", "10", testInstallation())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
}

func TestMalformedTokenResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"expires_in": 3600}`))
	}))
	defer srv.Close()

	cache := NewTokenCache(srv.URL, srv.Client())
	_, err := cache.Get(context.Background(), "1000", "10", testInstallation())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstreamUnavailable))
}
