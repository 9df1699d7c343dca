// Package models defines the tenant aggregate: one registered customer, the
// field-service account bound to it, that account's per-cloud-region
// installations and company units, and optional customization.
//
// The aggregate is loaded as a whole from the tenant store. Child records hold
// non-owning back-references to their parents for display and credential
// lookup; deserialization cannot reconstruct those, so the loader must call
// Connect after every fetch.
package models

import "strings"

// Mapping is the root record for one customer: it maps a locally registered
// collaboration domain to a field-service account.
type Mapping struct {
	ID string `json:"id"`

	// Domain is the customer's registered collaboration domain. By
	// convention it matches the email domain of the customer's users.
	Domain string `json:"domain"`

	// Label is the human-readable team name, for display and audit only.
	Label string `json:"label"`

	// EmailDomain optionally overrides Domain for email-based lookup, for
	// customers whose user email domain differs from their registered
	// collaboration domain.
	EmailDomain string `json:"emailDomain,omitempty"`

	// Users holds the email local-parts of every registered user, consulted
	// when resolving a tenant from a bare email address.
	Users []string `json:"users"`

	// VideoAPIKey grants access to the video-collaboration launch API.
	// Sensitive: never logged, never returned to callers.
	VideoAPIKey string `json:"videoApiKey"`

	Account *Account `json:"account"`
}

func (m *Mapping) String() string {
	if m.Account == nil {
		return m.Domain
	}
	return m.Domain + " <-> account '" + m.Account.Name + "'"
}

// HasUser reports whether the given email local-part is registered,
// case-insensitively.
func (m *Mapping) HasUser(localPart string) bool {
	for _, u := range m.Users {
		if strings.EqualFold(u, localPart) {
			return true
		}
	}
	return false
}

// Account is the field-service-platform account bound to a Mapping.
type Account struct {
	ID            string         `json:"accountId"`
	Name          string         `json:"accountName"`
	Installations []Installation `json:"installations"`
	Companies     []Company      `json:"companies"`
	FieldMapping  *FieldMapping  `json:"fieldMapping,omitempty"`

	// Mapping points back at the owning root. Non-owning: valid only while
	// the aggregate is in memory, wired by Connect, never serialized.
	Mapping *Mapping `json:"-"`
}

// FindInstallation returns the installation for the given cloud host,
// case-insensitively, or nil when the account has none there.
func (a *Account) FindInstallation(cloudHost string) *Installation {
	for i := range a.Installations {
		if strings.EqualFold(a.Installations[i].CloudHost, cloudHost) {
			return &a.Installations[i]
		}
	}
	return nil
}

// FindCompany returns the company unit with the given external id,
// case-insensitively, or nil.
func (a *Account) FindCompany(companyID string) *Company {
	for i := range a.Companies {
		if strings.EqualFold(a.Companies[i].ID, companyID) {
			return &a.Companies[i]
		}
	}
	return nil
}

// Installation is one deployment of OAuth client credentials for a specific
// cloud region. Unique per (account, cloud host).
type Installation struct {
	CloudHost string `json:"cloudHost"`
	ClientID  string `json:"clientId"`
	// ClientSecret is sensitive: never logged, never returned to any caller.
	ClientSecret  string `json:"clientSecret"`
	ClientVersion string `json:"clientVersion"`
}

// Company is a sub-organization within an Account. A company resolves to
// exactly one identity provider configuration or none.
type Company struct {
	ID               string            `json:"id"`
	IdentityProvider *IdentityProvider `json:"identityProvider,omitempty"`

	// Account points back at the owning account, wired by Connect.
	Account *Account `json:"-"`
}

// IdentityProvider is the OpenID Connect endpoint set configured for a
// company unit that delegates authentication to a third party.
type IdentityProvider struct {
	AuthorizeURL string `json:"authorizeUrl"`
	TokenURL     string `json:"tokenUrl"`
	UserInfoURL  string `json:"userInfoUrl"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// FieldMapping carries tenant-specific custom-field name overrides for
// contact resolution.
type FieldMapping struct {
	ExpertEmailField string `json:"expertEmailField"`
	ExpertNameField  string `json:"expertNameField"`
	SelectedWorkflow string `json:"selectedWorkflow,omitempty"`
}

// Connect rewires the non-owning back-references lost during
// deserialization: Company→Account and Account→Mapping. Every loader must
// call it after every fetch; skipping it leaves a record whose helpers and
// token issuance dereference nil.
func Connect(m *Mapping) {
	if m == nil || m.Account == nil {
		return
	}
	m.Account.Mapping = m
	for i := range m.Account.Companies {
		m.Account.Companies[i].Account = m.Account
	}
}
