package links

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/internal/validate"
	"github.com/clinicalpath/enrich-cli/pkg/search"
)

// findWebsite searches for the facility's official website, falling back
// to slug-pattern guessing. Returns the accepted URL, or "" with a reason.
func (e *Engine) findWebsite(ctx context.Context, opp model.Opportunity) (string, string, error) {
	query := fmt.Sprintf("%s %s official website", opp.Name, opp.Location)

	if err := e.wait(ctx); err != nil {
		return "", "", eris.Wrap(err, "links: pace search")
	}
	results, err := e.search.Search(ctx, query)
	if err != nil {
		return "", "", eris.Wrap(err, "links: search")
	}

	candidate := FirstAllowedResult(results)
	fromGuess := false
	if candidate == "" {
		candidate, err = e.guessWebsite(ctx, opp.Name)
		if err != nil {
			return "", "", err
		}
		fromGuess = candidate != ""
	}

	if candidate == "" {
		return "", ReasonNoWebsite, nil
	}

	// Verify: the candidate must answer a probe and its host must carry a
	// significant word from the facility name. Guessed candidates already
	// answered a probe.
	if !fromGuess {
		if err := e.wait(ctx); err != nil {
			return "", "", eris.Wrap(err, "links: pace probe")
		}
		if !e.fetcher.Probe(ctx, candidate) {
			zap.L().Debug("website candidate failed probe", zap.String("url", candidate))
			return "", ReasonUnverifiedWebsite, nil
		}
	}
	if !validate.HostMatchesName(validate.HostOf(candidate), opp.Name) {
		zap.L().Debug("website candidate failed name match",
			zap.String("url", candidate),
			zap.String("name", opp.Name),
		)
		return "", ReasonUnverifiedWebsite, nil
	}

	return candidate, "", nil
}

// FirstAllowedResult returns the first search result whose host is not on
// the exclusion list, preserving result order.
func FirstAllowedResult(results []search.Result) string {
	for _, r := range results {
		if r.URL == "" || validate.ExcludedHost(r.URL) {
			continue
		}
		return r.URL
	}
	return ""
}

// GuessPatterns returns the fixed candidate URL set derived from a name
// slug, in probe order.
func GuessPatterns(slug string) []string {
	if slug == "" {
		return nil
	}
	return []string{
		"https://www." + slug + ".org",
		"https://www." + slug + ".com",
		"https://" + slug + ".org",
		"https://" + slug + ".com",
	}
}

// guessWebsite probes the slug-derived URL patterns and returns the first
// one that answers.
func (e *Engine) guessWebsite(ctx context.Context, name string) (string, error) {
	slug := validate.NameSlug(name, e.slugMaxLen)
	for _, candidate := range GuessPatterns(slug) {
		if err := e.wait(ctx); err != nil {
			return "", eris.Wrap(err, "links: pace guess probe")
		}
		if e.fetcher.Probe(ctx, candidate) {
			return candidate, nil
		}
	}
	return "", nil
}
