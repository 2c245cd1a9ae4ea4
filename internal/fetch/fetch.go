// Package fetch wraps raw page retrieval for the link discovery engine: a
// full GET for scraping and a lightweight existence probe for candidate
// verification.
package fetch

import (
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	maxBodyBytes = 512 * 1024
	userAgent    = "Mozilla/5.0 (compatible; EnrichBot/1.0)"
)

// Fetcher retrieves page content and probes URL existence.
type Fetcher interface {
	// Fetch returns the raw page body, capped at 512 KiB.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// Probe reports whether the URL answers with a success status. A HEAD
	// request is tried first; some sites reject HEAD, so a GET follows.
	Probe(ctx context.Context, url string) bool
}

// HTTPFetcher is the net/http implementation of Fetcher.
type HTTPFetcher struct {
	fetchClient *http.Client
	probeClient *http.Client
}

// New creates an HTTPFetcher with the given probe and fetch timeouts.
func New(probeTimeout, fetchTimeout time.Duration) *HTTPFetcher {
	if probeTimeout <= 0 {
		probeTimeout = 8 * time.Second
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPFetcher{
		fetchClient: &http.Client{Timeout: fetchTimeout, Transport: transport},
		probeClient: &http.Client{Timeout: probeTimeout, Transport: transport},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.fetchClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: get")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("fetch: status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}
	return decodeBody(body, resp.Header.Get("Content-Type")), nil
}

// decodeBody converts the payload to UTF-8 using the charset declared in
// the Content-Type header. Absent, UTF-8, or unknown charsets pass the
// bytes through unchanged.
func decodeBody(body []byte, contentType string) []byte {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	name := params["charset"]
	if name == "" || strings.EqualFold(name, "utf-8") {
		return body
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

func (f *HTTPFetcher) Probe(ctx context.Context, url string) bool {
	if ok, decided := f.probeOnce(ctx, http.MethodHead, url); decided {
		return ok
	}
	ok, _ := f.probeOnce(ctx, http.MethodGet, url)
	return ok
}

// probeOnce returns (reachable, decided). A 405/501 response leaves the
// question undecided so the caller can retry with GET.
func (f *HTTPFetcher) probeOnce(ctx context.Context, method, url string) (bool, bool) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return false, true
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.probeClient.Do(req)
	if err != nil {
		return false, true
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return false, false
	}
	return resp.StatusCode < 400, true
}
