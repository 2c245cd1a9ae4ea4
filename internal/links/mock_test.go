package links

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/pkg/search"
)

// fakeStore is an in-memory store.Store for engine tests.
type fakeStore struct {
	opps map[string]*model.Opportunity
}

func newFakeStore(opps ...model.Opportunity) *fakeStore {
	fs := &fakeStore{opps: make(map[string]*model.Opportunity)}
	for i := range opps {
		o := opps[i]
		fs.opps[o.ID] = &o
	}
	return fs
}

func (f *fakeStore) CountByType(_ context.Context, t model.OpportunityType) (int, error) {
	n := 0
	for _, o := range f.opps {
		if o.Type == t {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListAll(_ context.Context) ([]model.Opportunity, error) {
	var out []model.Opportunity
	for _, o := range f.opps {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListMissingLinks(_ context.Context, t model.OpportunityType, limit int) ([]model.Opportunity, error) {
	var out []model.Opportunity
	for _, o := range f.opps {
		if t != "" && o.Type != t {
			continue
		}
		if o.Website != nil && o.Email != nil {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) GetOpportunity(_ context.Context, id string) (*model.Opportunity, error) {
	o, ok := f.opps[id]
	if !ok {
		return nil, eris.Errorf("opportunity not found: %s", id)
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) ExistsByNameLocation(context.Context, string, string) (bool, error) {
	return false, nil
}

func (f *fakeStore) InsertOpportunities(_ context.Context, opps []model.Opportunity) error {
	for i := range opps {
		o := opps[i]
		f.opps[o.ID] = &o
	}
	return nil
}

func (f *fakeStore) UpdateWebsite(_ context.Context, id, website string) error {
	o, ok := f.opps[id]
	if !ok {
		return eris.Errorf("opportunity not found: %s", id)
	}
	o.Website = &website
	return nil
}

func (f *fakeStore) UpdateEmail(_ context.Context, id, email string) error {
	o, ok := f.opps[id]
	if !ok {
		return eris.Errorf("opportunity not found: %s", id)
	}
	o.Email = &email
	return nil
}

func (f *fakeStore) UpdateCoordinates(_ context.Context, id string, lat, lng float64) error {
	o, ok := f.opps[id]
	if !ok {
		return eris.Errorf("opportunity not found: %s", id)
	}
	o.Latitude = &lat
	o.Longitude = &lng
	return nil
}

func (f *fakeStore) UpdateLocation(_ context.Context, id, location string) error {
	o, ok := f.opps[id]
	if !ok {
		return eris.Errorf("opportunity not found: %s", id)
	}
	o.Location = location
	return nil
}

func (f *fakeStore) DeleteByIDs(_ context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if _, ok := f.opps[id]; ok {
			delete(f.opps, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close() error                  { return nil }

// fakeSearch returns canned results, or an error.
type fakeSearch struct {
	results []search.Result
	err     error
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeFetcher answers probes and fetches from fixed maps.
type fakeFetcher struct {
	reachable map[string]bool
	pages     map[string]string
	probed    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	page, ok := f.pages[url]
	if !ok {
		return nil, eris.Errorf("fetch: status 404 for %s", url)
	}
	return []byte(page), nil
}

func (f *fakeFetcher) Probe(_ context.Context, url string) bool {
	f.probed = append(f.probed, url)
	return f.reachable[url]
}
