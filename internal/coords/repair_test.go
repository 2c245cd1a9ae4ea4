package coords

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicalpath/enrich-cli/internal/model"
	"github.com/clinicalpath/enrich-cli/internal/store"
	"github.com/clinicalpath/enrich-cli/pkg/geocode"
)

type fakeGeocoder struct {
	results  map[string]*geocode.Result
	err      error
	queries  []string
	state    string
	stateErr error
	reverses int
}

func (f *fakeGeocoder) Locate(ctx context.Context, query string) (*geocode.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[query]; ok {
		return r, nil
	}
	return &geocode.Result{Matched: false}, nil
}

func (f *fakeGeocoder) ReverseState(ctx context.Context, lat, lng float64) (string, error) {
	f.reverses++
	return f.state, f.stateErr
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ptr(f float64) *float64 { return &f }

func seed(t *testing.T, st store.Store, opps ...model.Opportunity) {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range opps {
		if opps[i].ID == "" {
			opps[i].ID = uuid.New().String()
		}
		if opps[i].Type == "" {
			opps[i].Type = model.TypeClinic
		}
		opps[i].CreatedAt = now.Add(time.Duration(i) * time.Minute)
		opps[i].UpdatedAt = opps[i].CreatedAt
	}
	require.NoError(t, st.InsertOpportunities(context.Background(), opps))
}

func TestFindNeedingRepair(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		model.Opportunity{ID: "good", Name: "Mercy Hospital", Location: "Austin, TX", Latitude: ptr(30.27), Longitude: ptr(-97.74)},
		model.Opportunity{ID: "missing", Name: "Sunrise Clinic", Location: "Denver, CO"},
		model.Opportunity{ID: "outside", Name: "Anchorage General", Location: "Anchorage, AK", Latitude: ptr(61.22), Longitude: ptr(-149.90)},
		model.Opportunity{ID: "half", Name: "Bay Hospice", Location: "Tampa, FL", Latitude: ptr(27.95)},
	)

	ids, err := NewEngine(st, &fakeGeocoder{}).FindNeedingRepair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"missing", "outside", "half"}, ids)
}

func TestRepair_GeocodesAndClearsWorklist(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		model.Opportunity{ID: "a", Name: "Sunrise Clinic", Location: "Denver, CO", Address: "1200 Grant St"},
		model.Opportunity{ID: "b", Name: "Mercy Hospital", Location: "Austin, TX"},
	)
	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		"1200 Grant St, Denver, CO":  {Latitude: 39.73, Longitude: -104.98, Matched: true},
		"Mercy Hospital, Austin, TX": {Latitude: 30.27, Longitude: -97.74, Matched: true},
	}}
	eng := NewEngine(st, gc, WithBatchDelay(time.Microsecond))

	result, err := eng.Repair(context.Background(), []string{"a", "b"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Geocoded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Remaining)
	assert.Nil(t, result.Checkpoint)

	// Address wins over name when present.
	assert.Equal(t, []string{"1200 Grant St, Denver, CO", "Mercy Hospital, Austin, TX"}, gc.queries)

	a, err := st.GetOpportunity(context.Background(), "a")
	require.NoError(t, err)
	require.NotNil(t, a.Latitude)
	assert.InDelta(t, 39.73, *a.Latitude, 0.001)
	require.NotNil(t, a.Longitude)
	assert.InDelta(t, -104.98, *a.Longitude, 0.001)

	remaining, err := eng.FindNeedingRepair(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRepair_MissAndOutOfBoundsCountAsFailed(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		model.Opportunity{ID: "nomatch", Name: "Ghost Clinic", Location: "Nowhere, ZZ"},
		model.Opportunity{ID: "alaska", Name: "Anchorage General", Location: "Anchorage, AK"},
	)
	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		"Anchorage General, Anchorage, AK": {Latitude: 61.22, Longitude: -149.90, Matched: true},
	}}

	result, err := NewEngine(st, gc, WithBatchDelay(time.Microsecond)).
		Repair(context.Background(), []string{"nomatch", "alaska"}, 25)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Geocoded)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, result.Remaining)

	// The out-of-bounds point was never persisted.
	alaska, err := st.GetOpportunity(context.Background(), "alaska")
	require.NoError(t, err)
	assert.Nil(t, alaska.Latitude)
}

func TestRepair_CompletesStatelessLocation(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		model.Opportunity{ID: "bare", Name: "Sunrise Clinic", Location: "Denver"},
	)
	gc := &fakeGeocoder{
		results: map[string]*geocode.Result{
			"Sunrise Clinic, Denver": {Latitude: 39.73, Longitude: -104.98, Matched: true},
		},
		state: "Colorado",
	}

	result, err := NewEngine(st, gc, WithBatchDelay(time.Microsecond)).
		Repair(context.Background(), []string{"bare"}, 25)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Geocoded)
	assert.Equal(t, 1, gc.reverses)

	opp, err := st.GetOpportunity(context.Background(), "bare")
	require.NoError(t, err)
	assert.Equal(t, "Denver, Colorado", opp.Location)
}

func TestRepair_ReverseFailureKeepsCoordinates(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		model.Opportunity{ID: "bare", Name: "Sunrise Clinic", Location: "Denver"},
	)
	gc := &fakeGeocoder{
		results: map[string]*geocode.Result{
			"Sunrise Clinic, Denver": {Latitude: 39.73, Longitude: -104.98, Matched: true},
		},
		stateErr: eris.New("reverse unavailable"),
	}

	result, err := NewEngine(st, gc, WithBatchDelay(time.Microsecond)).
		Repair(context.Background(), []string{"bare"}, 25)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Geocoded)
	assert.Equal(t, 0, result.Failed)

	opp, err := st.GetOpportunity(context.Background(), "bare")
	require.NoError(t, err)
	assert.Equal(t, "Denver", opp.Location)
	require.NotNil(t, opp.Latitude)
}

func TestRepair_StatefulLocationSkipsReverse(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		model.Opportunity{ID: "a", Name: "Mercy Hospital", Location: "Austin, TX"},
	)
	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		"Mercy Hospital, Austin, TX": {Latitude: 30.27, Longitude: -97.74, Matched: true},
	}}

	_, err := NewEngine(st, gc, WithBatchDelay(time.Microsecond)).
		Repair(context.Background(), []string{"a"}, 25)
	require.NoError(t, err)
	assert.Equal(t, 0, gc.reverses)
}

func TestRepair_CanceledContextReturnsCheckpoint(t *testing.T) {
	st := newTestStore(t)
	seed(t, st,
		model.Opportunity{ID: "a", Name: "One", Location: "Denver, CO"},
		model.Opportunity{ID: "b", Name: "Two", Location: "Denver, CO"},
		model.Opportunity{ID: "c", Name: "Three", Location: "Denver, CO"},
	)
	ctx, cancel := context.WithCancel(context.Background())
	gc := &fakeGeocoder{results: map[string]*geocode.Result{
		"One, Denver, CO": {Latitude: 39.73, Longitude: -104.98, Matched: true},
	}}
	eng := NewEngine(st, gc)

	first, err := eng.Repair(ctx, []string{"a"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Geocoded)

	cancel()
	result, err := eng.Repair(ctx, []string{"b", "c"}, 1)
	require.Error(t, err)
	assert.Equal(t, []string{"b", "c"}, result.Checkpoint)
	assert.Equal(t, 2, result.Remaining)
}

func TestRepair_EmptyWorklist(t *testing.T) {
	st := newTestStore(t)

	result, err := NewEngine(st, &fakeGeocoder{}).Repair(context.Background(), nil, 25)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Geocoded)
	assert.Equal(t, 0, result.Remaining)
	assert.Nil(t, result.Checkpoint)
}
