package links

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/clinicalpath/enrich-cli/internal/validate"
)

// emailPrefixes are the local-part prefixes probed for, in match order.
// The first three are also the preference set when multiple addresses
// validate.
var emailPrefixes = []string{"contact", "info", "volunteer", "volunteers", "hr", "admin", "office"}

var preferredPrefixes = map[string]bool{
	"contact":   true,
	"info":      true,
	"volunteer": true,
}

// prefixPatterns match prefix-local-part addresses anywhere in the page.
var prefixPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(emailPrefixes))
	for i, p := range emailPrefixes {
		patterns[i] = regexp.MustCompile(`(?i)\b` + p + `@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	}
	return patterns
}()

var mailtoRe = regexp.MustCompile(`(?i)mailto:([a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})`)

// findEmail fetches the website and extracts a contact address from it.
func (e *Engine) findEmail(ctx context.Context, website string) (string, error) {
	if err := e.wait(ctx); err != nil {
		return "", eris.Wrap(err, "links: pace fetch")
	}
	body, err := e.fetcher.Fetch(ctx, website)
	if err != nil {
		return "", eris.Wrap(err, "links: fetch website")
	}
	return ExtractEmail(body, website), nil
}

// ExtractEmail applies the ordered pattern matchers to a page body and
// returns the best address whose domain belongs to the website, or "".
func ExtractEmail(body []byte, website string) string {
	candidates := collectCandidates(body)

	var valid []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		c = strings.ToLower(c)
		if seen[c] {
			continue
		}
		seen[c] = true
		if !validate.ValidEmail(c) {
			continue
		}
		if !validate.EmailMatchesSite(c, website) {
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return ""
	}

	for _, c := range valid {
		if preferredPrefixes[localPrefix(c)] {
			return c
		}
	}
	return valid[0]
}

// collectCandidates gathers addresses from the prefix matchers, mailto
// hrefs in the markup, and a raw mailto scan, preserving match order.
func collectCandidates(body []byte) []string {
	var candidates []string

	for _, re := range prefixPatterns {
		candidates = append(candidates, re.FindAllString(string(body), -1)...)
	}

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			addr := strings.TrimPrefix(href, "mailto:")
			if i := strings.IndexAny(addr, "?&"); i >= 0 {
				addr = addr[:i]
			}
			if addr != "" {
				candidates = append(candidates, addr)
			}
		})
	}

	for _, m := range mailtoRe.FindAllStringSubmatch(string(body), -1) {
		candidates = append(candidates, m[1])
	}

	return candidates
}

// localPrefix returns the local part of an address.
func localPrefix(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return ""
	}
	return email[:at]
}
