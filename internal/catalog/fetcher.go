package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrRateLimited marks a forbidden response from the source, interpreted as
// a source-side rate block. Terminal for the current call: no retries.
var ErrRateLimited = errors.New("catalog source rate limited")

// ErrSourceUnavailable marks exhaustion of the attempt budget with no cached
// fallback available.
var ErrSourceUnavailable = errors.New("catalog source unavailable")

// ErrNotFound marks a successful source response that contains no record for
// the requested identifier.
var ErrNotFound = errors.New("satellite not found")

const defaultBaseURL = "https://celestrak.org/NORAD/elements/"

// maxBodyBytes caps response bodies; the full active catalog is ~3 MB, so
// anything past this is a misbehaving source.
const maxBodyBytes = 50 * 1024 * 1024

// groupAliases maps public group names to the source's query values.
var groupAliases = map[string]string{
	"gps": "gps-ops",
}

// GroupInfo describes one advertised source group.
type GroupInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// KnownGroups returns the source groups the service advertises. Any group
// name is accepted by FetchGroup; these are the documented ones.
func KnownGroups() []GroupInfo {
	return []GroupInfo{
		{Name: "starlink", Description: "Starlink constellation satellites"},
		{Name: "stations", Description: "Space stations (ISS, etc.)"},
		{Name: "weather", Description: "Weather satellites"},
		{Name: "active", Description: "All active satellites"},
		{Name: "gps", Description: "GPS constellation"},
	}
}

// Fetcher retrieves raw element-set data from the network source.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewFetcher creates a Fetcher for the given base URL ("" uses the default
// CelesTrak endpoint). timeout bounds each individual attempt.
func NewFetcher(baseURL string, timeout time.Duration) *Fetcher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	// Request paths are appended directly, so the base must end in a slash.
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchGroup performs one HTTP GET for a named group's element sets.
func (f *Fetcher) FetchGroup(ctx context.Context, group string) ([]byte, error) {
	alias := group
	if a, ok := groupAliases[group]; ok {
		alias = a
	}
	return f.get(ctx, f.baseURL+"gp.php?GROUP="+url.QueryEscape(alias)+"&FORMAT=tle")
}

// FetchByID performs one HTTP GET for a single satellite by catalog number.
func (f *Fetcher) FetchByID(ctx context.Context, noradID int) ([]byte, error) {
	return f.get(ctx, fmt.Sprintf("%sgp.php?CATNR=%d&FORMAT=tle", f.baseURL, noradID))
}

func (f *Fetcher) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching element sets: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("status %d from %s: %w", resp.StatusCode, u, ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, u)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}

	return body, nil
}
