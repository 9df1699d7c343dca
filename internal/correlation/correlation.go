// Package correlation encodes the account/company/user identifiers that must
// survive the round trip through an external identity provider. The provider
// echoes our `state` parameter back verbatim, and no server-side session
// exists across the redirect, so the payload has to be self-contained.
//
// The token is base64 over a delimited concatenation. It is deliberately NOT
// signed or encrypted: anyone can mint a well-formed token. All it buys an
// attacker is the ability to name an account/company/user tuple, which still
// has to pass the identity checks in the bridge before anything is issued.
package correlation

import (
	"encoding/base64"
	"strings"

	dErrors "fieldlink/pkg/domain-errors"
)

// delimiter separates the four fields. Account, company, and user identifiers
// are numeric strings on the field-service platform and cloud hosts are DNS
// names, so "::" cannot occur inside a legitimate value.
const delimiter = "::"

// Payload carries the identity of one authentication attempt across the
// external redirect.
type Payload struct {
	CloudHost string
	AccountID string
	CompanyID string
	UserID    string
}

// Encode packs the four identifiers into an opaque token. Field order is
// account, company, user, host; Decode depends on it.
func Encode(accountID, companyID, userID, cloudHost string) string {
	text := strings.Join([]string{accountID, companyID, userID, cloudHost}, delimiter)
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// Decode unpacks a token produced by Encode. Any token that is not valid
// base64 or does not decompose into exactly four fields is rejected with an
// invalid_correlation error; there is no partial acceptance.
func Decode(token string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Payload{}, dErrors.Wrap(err, dErrors.CodeInvalidCorrelation, "state is not valid base64")
	}

	parts := strings.Split(string(raw), delimiter)
	if len(parts) != 4 {
		return Payload{}, dErrors.New(dErrors.CodeInvalidCorrelation, "state does not decompose into four fields")
	}

	return Payload{
		AccountID: parts[0],
		CompanyID: parts[1],
		UserID:    parts[2],
		CloudHost: parts[3],
	}, nil
}
