package source

import (
	"regexp"
	"strings"
)

// BrandRule maps account names containing Match (case-insensitive) onto a
// fixed domain. Language is optional.
type BrandRule struct {
	Match    string `toml:"match"`
	Domain   string `toml:"domain"`
	Language string `toml:"language"`
}

// AccountParts is a decomposed composite account name.
type AccountParts struct {
	Display  string
	Domain   string
	Language string
}

var (
	trailingID    = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	countrySuffix = regexp.MustCompile(`\.([A-Za-z]{2})$`)
)

// TruncateAccount removes a trailing parenthesized identifier:
// "Shop NL (123-456-7890)" becomes "Shop NL".
func TruncateAccount(name string) string {
	return strings.TrimSpace(trailingID.ReplaceAllString(strings.TrimSpace(name), ""))
}

// DecomposeAccount splits a composite account name into display name, domain
// and language. The first matching rule wins: configured brand substring,
// "<domain> - <language>", a two-letter ".xx" suffix, then the name as-is.
func DecomposeAccount(raw string, brands []BrandRule) AccountParts {
	display := TruncateAccount(raw)
	parts := AccountParts{Display: display}
	if display == "" {
		return parts
	}

	lower := strings.ToLower(display)
	for _, b := range brands {
		if b.Match == "" || !strings.Contains(lower, strings.ToLower(b.Match)) {
			continue
		}
		parts.Domain = b.Domain
		parts.Language = strings.ToUpper(b.Language)
		if parts.Language == "" {
			_, parts.Language = splitDomainLanguage(display)
		}
		return parts
	}

	parts.Domain, parts.Language = splitDomainLanguage(display)
	return parts
}

// splitDomainLanguage tries the " - " separator before the country-code
// suffix, so "Brand - shop.de" yields domain "Brand".
func splitDomainLanguage(name string) (domain, language string) {
	if before, after, ok := strings.Cut(name, " - "); ok {
		return strings.TrimSpace(before), strings.ToUpper(strings.TrimSpace(after))
	}
	if m := countrySuffix.FindStringSubmatch(name); m != nil {
		return name, strings.ToUpper(m[1])
	}
	return name, ""
}
