// Package email holds the small address helpers used when mapping an end-user
// email to a registered tenant.
package email

import "strings"

// Split decomposes an email address into its local part and domain.
// It reports false for empty strings and strings without a non-empty local part.
func Split(address string) (local, domain string, ok bool) {
	idx := strings.Index(address, "@")
	if idx <= 0 || idx == len(address)-1 {
		return "", "", false
	}
	return address[:idx], address[idx+1:], true
}

// Domain returns the domain of an email address, or "" when the address does
// not split cleanly.
func Domain(address string) string {
	_, domain, ok := Split(address)
	if !ok {
		return ""
	}
	return domain
}

// Equal compares two addresses case-insensitively. Identity assertions from
// the platform and from external providers differ in case more often than not.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}
