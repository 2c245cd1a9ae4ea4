// Package directory fetches facility records from the NPPES NPI registry,
// the external source the import orchestrator pages through.
package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://npiregistry.cms.hhs.gov/api"

// Client fetches pages of facility records from the external directory.
type Client interface {
	// Fetch returns up to limit facilities starting at offset, optionally
	// filtered to a two-letter state code.
	Fetch(ctx context.Context, limit, offset int, state string) ([]Facility, error)
}

// Facility is one record from the external directory.
type Facility struct {
	SourceID string
	Name     string
	City     string
	State    string
	Address  string
	Phone    string
	Taxonomy string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a directory client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// registryResponse mirrors the NPI registry search payload.
type registryResponse struct {
	ResultCount int              `json:"result_count"`
	Results     []registryEntry  `json:"results"`
	Errors      []map[string]any `json:"Errors"`
}

type registryEntry struct {
	Number string `json:"number"`
	Basic  struct {
		OrganizationName string `json:"organization_name"`
	} `json:"basic"`
	Addresses []struct {
		AddressPurpose  string `json:"address_purpose"`
		Address1        string `json:"address_1"`
		City            string `json:"city"`
		State           string `json:"state"`
		TelephoneNumber string `json:"telephone_number"`
	} `json:"addresses"`
	Taxonomies []struct {
		Desc    string `json:"desc"`
		Primary bool   `json:"primary"`
	} `json:"taxonomies"`
}

func (c *httpClient) Fetch(ctx context.Context, limit, offset int, state string) ([]Facility, error) {
	params := url.Values{
		"version":          {"2.1"},
		"enumeration_type": {"NPI-2"}, // organizations only
		"limit":            {strconv.Itoa(limit)},
		"skip":             {strconv.Itoa(offset)},
	}
	if state != "" {
		params.Set("state", state)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "directory: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "directory: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "directory: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("directory: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed registryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "directory: unmarshal response")
	}
	if len(parsed.Errors) > 0 {
		return nil, eris.Errorf("directory: registry error: %v", parsed.Errors[0])
	}

	facilities := make([]Facility, 0, len(parsed.Results))
	for _, entry := range parsed.Results {
		f := Facility{
			SourceID: entry.Number,
			Name:     entry.Basic.OrganizationName,
		}
		for _, addr := range entry.Addresses {
			// Prefer the practice location over the mailing address.
			if addr.AddressPurpose == "LOCATION" || f.City == "" {
				f.City = addr.City
				f.State = addr.State
				f.Address = addr.Address1
				f.Phone = addr.TelephoneNumber
			}
		}
		for _, tax := range entry.Taxonomies {
			if tax.Primary || f.Taxonomy == "" {
				f.Taxonomy = tax.Desc
			}
		}
		if f.Name == "" {
			continue
		}
		facilities = append(facilities, f)
	}

	return facilities, nil
}
