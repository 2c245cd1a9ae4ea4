package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="results">
	<div class="result">
		<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fsunriseclinic.org%2F&amp;rut=abc">Sunrise Clinic | Denver</a>
	</div>
	<div class="result">
		<a class="result__a" href="https://www.yelp.com/biz/sunrise-clinic-denver">Sunrise Clinic - Yelp</a>
	</div>
	<div class="result">
		<a class="result__a">no href here</a>
	</div>
	<div class="result">
		<a class="result__a" href="javascript:void(0)">junk scheme</a>
	</div>
	<a href="https://ignored.example.org">not a result link</a>
</div>
</body></html>`

func TestSearchParsesResults(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	results, err := NewClient(WithBaseURL(srv.URL)).
		Search(context.Background(), "Sunrise Clinic Denver official website")
	require.NoError(t, err)

	assert.Equal(t, "Sunrise Clinic Denver official website", gotQuery)
	assert.Contains(t, gotUA, "EnrichBot")

	require.Len(t, results, 2)
	assert.Equal(t, "https://sunriseclinic.org/", results[0].URL)
	assert.Equal(t, "Sunrise Clinic | Denver", results[0].Title)
	assert.Equal(t, "https://www.yelp.com/biz/sunrise-clinic-denver", results[1].URL)
}

func TestSearchEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>No results.</body></html>"))
	}))
	defer srv.Close()

	results, err := NewClient(WithBaseURL(srv.URL)).Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{"uddg redirect", "//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Fabout&rut=x", "https://example.org/about"},
		{"direct https", "https://example.org", "https://example.org"},
		{"direct http", "http://example.org", "http://example.org"},
		{"javascript scheme", "javascript:void(0)", ""},
		{"relative path", "/html?q=next", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, unwrapRedirect(tc.href))
		})
	}
}
