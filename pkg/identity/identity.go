// Package identity holds the syntactic rules for identity tokens (institutional
// IDs such as 4VP21CS045) and contact addresses. Every function here is pure
// and total: invalid input yields false, never a panic or error.
package identity

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// DefaultPrefix is the institution code every identity token starts with.
const DefaultPrefix = "4VP"

var prefixRe = regexp.MustCompile(`^[A-Z0-9]{1,8}$`)

// Validator checks identity tokens of the form <prefix><2 digits><2 letters><3 digits>.
type Validator struct {
	prefix  string
	tokenRe *regexp.Regexp
}

// NewValidator builds a Validator for prefix. An empty prefix selects DefaultPrefix.
func NewValidator(prefix string) (*Validator, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !prefixRe.MatchString(prefix) {
		return nil, fmt.Errorf("invalid identity prefix %q", prefix)
	}
	return &Validator{
		prefix:  prefix,
		tokenRe: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `[0-9]{2}[A-Z]{2}[0-9]{3}$`),
	}, nil
}

var defaultValidator, _ = NewValidator(DefaultPrefix)

// Prefix returns the configured institution prefix.
func (v *Validator) Prefix() string {
	return v.prefix
}

// ValidateIdentity reports whether token matches the identity format exactly.
// It does not normalize: callers run Normalize first.
func (v *Validator) ValidateIdentity(token string) bool {
	return v.tokenRe.MatchString(token)
}

// Normalize trims surrounding whitespace and upper-cases an identity token.
func Normalize(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// ValidateIdentity checks token against the default prefix.
func ValidateIdentity(token string) bool {
	return defaultValidator.ValidateIdentity(token)
}

// NormalizeContact trims surrounding whitespace from a contact address.
func NormalizeContact(address string) string {
	return strings.TrimSpace(address)
}

// ValidateContact reports whether address is e-mail shaped: exactly one '@',
// a non-empty local part, and a domain with a dot that is neither its first
// nor its last character. Whitespace anywhere is rejected.
func ValidateContact(address string) bool {
	if address == "" || strings.IndexFunc(address, unicode.IsSpace) >= 0 {
		return false
	}
	local, domain, found := strings.Cut(address, "@")
	if !found || local == "" || strings.Contains(domain, "@") {
		return false
	}
	// some dot in the domain needs a character on each side
	for i := 1; i < len(domain)-1; i++ {
		if domain[i] == '.' {
			return true
		}
	}
	return false
}

// Fingerprint returns a short, stable, non-reversible digest of a contact
// address, suitable for logs and rate-limit keys.
func Fingerprint(address string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(NormalizeContact(address))))
	return hex.EncodeToString(sum[:8])
}
