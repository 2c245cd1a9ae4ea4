package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

const censusBenchmark = "Public_AR_Current"

// censusLocationsResponse is the JSON response from the one-line address API.
type censusLocationsResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
		} `json:"addressMatches"`
	} `json:"result"`
}

func (g *geocoder) Locate(ctx context.Context, query string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"address":   {query},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	body, err := g.get(ctx, g.baseURL+"/locations/onelineaddress?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var parsed censusLocationsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "geocode: parse locations response")
	}

	if len(parsed.Result.AddressMatches) == 0 {
		return &Result{Matched: false}, nil
	}

	match := parsed.Result.AddressMatches[0]
	return &Result{
		Latitude:  match.Coordinates.Y,
		Longitude: match.Coordinates.X,
		Matched:   true,
	}, nil
}

// censusGeographiesResponse is the JSON response from the coordinates API.
type censusGeographiesResponse struct {
	Result struct {
		Geographies struct {
			States []struct {
				Name string `json:"NAME"`
			} `json:"States"`
		} `json:"geographies"`
	} `json:"result"`
}

func (g *geocoder) ReverseState(ctx context.Context, lat, lng float64) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"x":         {strconv.FormatFloat(lng, 'f', -1, 64)},
		"y":         {strconv.FormatFloat(lat, 'f', -1, 64)},
		"benchmark": {censusBenchmark},
		"vintage":   {"Current_Current"},
		"layers":    {"States"},
		"format":    {"json"},
	}

	body, err := g.get(ctx, g.baseURL+"/geographies/coordinates?"+params.Encode())
	if err != nil {
		return "", err
	}

	var parsed censusGeographiesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", eris.Wrap(err, "geocode: parse geographies response")
	}

	states := parsed.Result.Geographies.States
	if len(states) == 0 {
		return "", nil
	}
	return states[0].Name, nil
}

func (g *geocoder) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}
	return body, nil
}
