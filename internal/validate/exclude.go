package validate

import "strings"

// excludedHosts lists aggregator, review, social, and reference sites that
// can never be an authoritative facility website. Matched as the host
// itself or any subdomain of it.
var excludedHosts = []string{
	"yelp.com",
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"indeed.com",
	"glassdoor.com",
	"healthgrades.com",
	"zocdoc.com",
	"webmd.com",
	"vitals.com",
	"care.com",
	"yellowpages.com",
	"mapquest.com",
	"tripadvisor.com",
	"wikipedia.org",
	"google.com",
	"bing.com",
	"duckduckgo.com",
	"youtube.com",
	"medicare.gov",
	"usnews.com",
	"caring.com",
	"niche.com",
}

// ExcludedHost reports whether the URL's host belongs to a known
// non-authoritative site.
func ExcludedHost(rawURL string) bool {
	host := HostOf(rawURL)
	if host == "" {
		return true
	}
	for _, ex := range excludedHosts {
		if host == ex || strings.HasSuffix(host, "."+ex) {
			return true
		}
	}
	return false
}
