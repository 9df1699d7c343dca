package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration for the bridge.
type Server struct {
	Addr string

	// BaseURL is the externally reachable URL of this service. The OIDC
	// callback and direct-login URLs are built from it, so it must match
	// whatever redirect URI the tenants registered with their providers.
	BaseURL string

	// Credential signing for the bridge's own short-lived token.
	CredentialSigningKey string
	CredentialIssuer     string
	CredentialAudience   string
	CredentialTTL        time.Duration

	// FSMTokenURL is the field-service platform's fixed OAuth2 token
	// endpoint used for the client-credentials exchange.
	FSMTokenURL string

	// Data-model versions pinned against the field-service data API. Only a
	// handful of fields from each object are consumed, so older versions
	// remain compatible.
	ActivityVersion  int
	ContactVersion   int
	PersonVersion    int
	EquipmentVersion int

	// LaunchURL is the video-collaboration platform's launch-request endpoint.
	LaunchURL string

	// Tenant seed: either an inline JSON document or a path to one.
	TenantSeedJSON string
	TenantSeedPath string

	// HTTPTimeout bounds every outbound call. The core performs no retries;
	// a timeout is a terminal failure for the request that triggered it.
	HTTPTimeout time.Duration
}

const (
	defaultFSMTokenURL = "https://auth.coresuite.com/api/oauth2/v1/token"
	defaultLaunchURL   = "https://onsight.librestream.com/oamrestapi/api/launchrequest"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                 envOr("FIELDLINK_ADDR", ":8080"),
		BaseURL:              envOr("FIELDLINK_BASE_URL", "http://localhost:8080"),
		CredentialSigningKey: envOr("FIELDLINK_TOKEN_KEY", "dev-secret-key-change-in-production"),
		CredentialIssuer:     envOr("FIELDLINK_TOKEN_ISSUER", "fieldlink"),
		CredentialAudience:   envOr("FIELDLINK_TOKEN_AUDIENCE", "fieldlink"),
		CredentialTTL:        time.Duration(envIntOr("FIELDLINK_TOKEN_TIMEOUT_MINUTES", 60)) * time.Minute,
		FSMTokenURL:          envOr("FIELDLINK_FSM_TOKEN_URL", defaultFSMTokenURL),
		ActivityVersion:      envIntOr("FIELDLINK_DTO_ACTIVITY", 37),
		ContactVersion:       envIntOr("FIELDLINK_DTO_CONTACT", 17),
		PersonVersion:        envIntOr("FIELDLINK_DTO_PERSON", 24),
		EquipmentVersion:     envIntOr("FIELDLINK_DTO_EQUIPMENT", 23),
		LaunchURL:            envOr("FIELDLINK_LAUNCH_URL", defaultLaunchURL),
		TenantSeedJSON:       os.Getenv("FIELDLINK_TENANT_SEED_JSON"),
		TenantSeedPath:       os.Getenv("FIELDLINK_TENANT_SEED_PATH"),
		HTTPTimeout:          15 * time.Second,
	}

	if raw := os.Getenv("FIELDLINK_HTTP_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.HTTPTimeout = d
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
