// Package validate holds the pure predicates the enrichment engines share:
// coordinate bounds, email syntax, and email/host correspondence. Keeping
// them free of network calls lets the heuristics be table-tested directly.
package validate

import (
	"math"
	"net/url"
	"regexp"
	"strings"
)

// Bounding box approximating the contiguous-US service region. Alaska,
// Hawaii, and the territories fall outside it; coordinates there are
// treated as needing repair. Known gap, kept for compatibility with the
// existing directory data.
const (
	MinLatitude  = 24.0
	MaxLatitude  = 50.0
	MinLongitude = -130.0
	MaxLongitude = -65.0
)

// ValidCoordinates reports whether lat/lng fall inside the service
// bounding box. NaN is never valid.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= MinLatitude && lat <= MaxLatitude &&
		lng >= MinLongitude && lng <= MaxLongitude
}

// ValidCoordinatePair is the pointer-pair form used against records: a nil
// latitude or longitude means the pair was never geocoded.
func ValidCoordinatePair(lat, lng *float64) bool {
	if lat == nil || lng == nil {
		return false
	}
	return ValidCoordinates(*lat, *lng)
}

// emailRe is deliberately loose: one @, a non-empty local part, and a
// dotted domain. Deliverability is not checked.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const maxEmailLength = 254

// ValidEmail reports whether s is a plausible RFC-shaped address.
func ValidEmail(s string) bool {
	if s == "" || len(s) > maxEmailLength {
		return false
	}
	return emailRe.MatchString(s)
}

// EmailMatchesSite reports whether the email's domain equals the website's
// host, or is a subdomain of it. Rejects third-party addresses quoted on a
// page (e.g. a webmaster's unrelated mailbox).
func EmailMatchesSite(email, websiteURL string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	emailDomain := strings.ToLower(email[at+1:])

	host := HostOf(websiteURL)
	if host == "" || emailDomain == "" {
		return false
	}

	return emailDomain == host || strings.HasSuffix(emailDomain, "."+host)
}

// HostOf extracts the lowercased host from a URL, stripping a leading
// "www." so subdomain comparisons work against the registrable name.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

var wordRe = regexp.MustCompile(`[a-zA-Z]+`)

// HostMatchesName reports whether the host contains at least one
// significant word (length > 3) from the facility name. This is the
// verification gate for search-discovered websites: "sunriseclinic.org"
// matches "Sunrise Clinic", "squarespace.com" does not.
func HostMatchesName(host, name string) bool {
	host = strings.ToLower(host)
	if host == "" {
		return false
	}
	for _, w := range wordRe.FindAllString(strings.ToLower(name), -1) {
		if len(w) > 3 && strings.Contains(host, w) {
			return true
		}
	}
	return false
}

// NameSlug derives a lowercase alphanumeric slug from a facility name for
// website guessing, capped at maxLen characters.
func NameSlug(name string, maxLen int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	slug := b.String()
	if maxLen > 0 && len(slug) > maxLen {
		slug = slug[:maxLen]
	}
	return slug
}
