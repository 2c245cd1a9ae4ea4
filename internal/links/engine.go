// Package links discovers missing website and contact email links for
// opportunity records via web search, heuristic verification, and page
// scraping. Processing is strictly sequential with a fixed-interval pace
// between external calls; the search and target sites are rate-limited
// surfaces and this engine is the polite tenant.
package links

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clinicalpath/enrich-cli/internal/fetch"
	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/internal/store"
	"github.com/clinicalpath/enrich-cli/pkg/search"
)

// Outcome reasons reported when nothing was accepted.
const (
	ReasonNoWebsite         = "no website found"
	ReasonUnverifiedWebsite = "website found but failed verification"
	ReasonNoValidEmail      = "no valid email found"
	ReasonNoWebsiteForEmail = "cannot find email without website"
)

// Engine runs link discovery against the record store.
type Engine struct {
	store      store.Store
	search     search.Client
	fetcher    fetch.Fetcher
	pace       *rate.Limiter
	slugMaxLen int
}

// Option configures the engine.
type Option func(*Engine)

// WithCallDelay sets the fixed delay enforced before every external call.
func WithCallDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pace = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithSlugMaxLen caps the length of slugs used for website guessing.
func WithSlugMaxLen(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.slugMaxLen = n
		}
	}
}

// NewEngine creates a link discovery engine.
func NewEngine(st store.Store, sc search.Client, f fetch.Fetcher, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		search:     sc,
		fetcher:    f,
		pace:       rate.NewLimiter(rate.Every(2*time.Second), 1),
		slugMaxLen: 30,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run discovers links for up to limit records of the given type that are
// missing a website or email. Records are processed in collection order;
// a network failure on one record downgrades it to a skip and the run
// continues.
func (e *Engine) Run(ctx context.Context, limit int, t model.OpportunityType) (*model.LinkRunResult, error) {
	opps, err := e.store.ListMissingLinks(ctx, t, limit)
	if err != nil {
		return nil, eris.Wrap(err, "links: list missing links")
	}

	log := zap.L().With(zap.String("engine", "links"))
	result := &model.LinkRunResult{}

	for _, opp := range opps {
		outcome, err := e.discover(ctx, opp)
		if err != nil {
			if ctx.Err() != nil {
				return result, eris.Wrap(ctx.Err(), "links: run canceled")
			}
			log.Warn("discovery skipped",
				zap.String("id", opp.ID),
				zap.String("name", opp.Name),
				zap.Error(err),
			)
			result.Skipped++
			// A website may have been accepted and persisted before the
			// failing step; keep it in the tallies.
			if outcome == nil {
				outcome = &model.LinkOutcome{ID: opp.ID}
			}
			if outcome.WebsiteFound {
				result.Websites++
			}
			if outcome.EmailFound {
				result.Emails++
			}
			outcome.Reason = eris.ToString(err, false)
			result.Outcomes = append(result.Outcomes, *outcome)
			result.Processed++
			continue
		}

		if outcome.WebsiteFound {
			result.Websites++
		}
		if outcome.EmailFound {
			result.Emails++
		}
		result.Outcomes = append(result.Outcomes, *outcome)
		result.Processed++

		log.Info("discovery outcome",
			zap.String("id", opp.ID),
			zap.String("name", opp.Name),
			zap.Bool("website_found", outcome.WebsiteFound),
			zap.Bool("email_found", outcome.EmailFound),
			zap.String("reason", outcome.Reason),
		)
	}

	return result, nil
}

// Discover runs link discovery for a single record by id.
func (e *Engine) Discover(ctx context.Context, id string) (*model.LinkOutcome, error) {
	opp, err := e.store.GetOpportunity(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "links: get opportunity")
	}
	return e.discover(ctx, *opp)
}

func (e *Engine) discover(ctx context.Context, opp model.Opportunity) (*model.LinkOutcome, error) {
	outcome := &model.LinkOutcome{ID: opp.ID}

	website := opp.Website
	if website == nil {
		found, reason, err := e.findWebsite(ctx, opp)
		if err != nil {
			return outcome, err
		}
		if found == "" {
			outcome.Reason = reason
		} else {
			if err := e.store.UpdateWebsite(ctx, opp.ID, found); err != nil {
				return outcome, eris.Wrap(err, "links: persist website")
			}
			outcome.WebsiteFound = true
			outcome.Website = &found
			website = &found
		}
	}

	if opp.Email != nil {
		return outcome, nil
	}

	if website == nil {
		if outcome.Reason == "" {
			outcome.Reason = ReasonNoWebsiteForEmail
		}
		return outcome, nil
	}

	// From here on the outcome may already carry an accepted website, so
	// errors return it alongside for the caller to count.
	email, err := e.findEmail(ctx, *website)
	if err != nil {
		return outcome, err
	}
	if email == "" {
		if outcome.Reason == "" {
			outcome.Reason = ReasonNoValidEmail
		}
		return outcome, nil
	}

	if err := e.store.UpdateEmail(ctx, opp.ID, email); err != nil {
		return outcome, eris.Wrap(err, "links: persist email")
	}
	outcome.EmailFound = true
	outcome.Email = &email
	outcome.Reason = ""
	return outcome, nil
}

// wait enforces the fixed inter-call delay.
func (e *Engine) wait(ctx context.Context) error {
	return e.pace.Wait(ctx)
}
