package correlation

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "fieldlink/pkg/domain-errors"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		accountID string
		companyID string
		userID    string
		cloudHost string
	}{
		{"typical identifiers", "1000", "10", "42", "eu.example.com"},
		{"alphanumeric ids", "acct-9", "co_1", "u.7", "us-east.example.com"},
		{"empty fields survive", "", "", "", ""},
		{"unicode values", "kontó", "céĝ", "užívateľ", "hôte.example"},
		{"single colons allowed", "a:1", "b:2", "c:3", "host:8443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := Encode(tt.accountID, tt.companyID, tt.userID, tt.cloudHost)

			got, err := Decode(token)
			require.NoError(t, err)
			assert.Equal(t, tt.accountID, got.AccountID)
			assert.Equal(t, tt.companyID, got.CompanyID)
			assert.Equal(t, tt.userID, got.UserID)
			assert.Equal(t, tt.cloudHost, got.CloudHost)
		})
	}
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "not-base64!!"},
		{"empty token", ""},
		{"too few fields", base64.StdEncoding.EncodeToString([]byte("1000::10::42"))},
		{"too many fields", base64.StdEncoding.EncodeToString([]byte("1000::10::42::host::extra"))},
		{"no delimiter at all", base64.StdEncoding.EncodeToString([]byte("garbage"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidCorrelation),
				"expected invalid_correlation, got %v", err)
		})
	}
}

// Field order inside the token is part of the wire contract with in-flight
// authentication attempts, so it is pinned here.
func TestEncodeFieldOrder(t *testing.T) {
	token := Encode("1000", "10", "42", "eu.example.com")
	raw, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Equal(t, "1000::10::42::eu.example.com", string(raw))
}
