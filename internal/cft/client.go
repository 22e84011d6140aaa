// Package cft resolves ChromeDriver releases from the Chrome-for-Testing
// endpoints: the per-milestone LATEST_RELEASE files and the
// known-good-versions-with-downloads feed.
package cft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chromeprov/internal/chromever"
)

const (
	defaultBaseURL = "https://googlechromelabs.github.io/chrome-for-testing"

	// The feed is small (a few MB); cap reads defensively anyway.
	maxFeedBytes = 64 << 20
)

// Typed errors callers branch on.
var (
	// ErrUnsupportedMilestone is returned for majors older than the
	// Chrome-for-Testing epoch (115), whose drivers lived on a retired
	// download scheme.
	ErrUnsupportedMilestone = errors.New("milestone predates chrome-for-testing")

	// ErrNoRelease is returned when the endpoint has no release for the
	// requested milestone.
	ErrNoRelease = errors.New("no release for milestone")

	// ErrNoDownload is returned when a version exists but carries no
	// chromedriver download for the requested platform.
	ErrNoDownload = errors.New("no chromedriver download for platform")
)

// Client queries the Chrome-for-Testing endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client

	maxRetries       int
	retryBackoffBase time.Duration
	retryBackoffMax  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the endpoint base (trailing slash trimmed).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries sets how many times transient failures are retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient returns a resolver client with sane defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:          defaultBaseURL,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		maxRetries:       3,
		retryBackoffBase: time.Second,
		retryBackoffMax:  8 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Release is a resolved driver release for one platform.
type Release struct {
	Version  chromever.Version
	Platform Platform
	URL      string
}

// LatestForMajor resolves the newest driver version for a Chrome
// milestone via the LATEST_RELEASE_{major} endpoint.
func (c *Client) LatestForMajor(ctx context.Context, major int) (chromever.Version, error) {
	if major < chromever.CfTEpoch {
		return chromever.Version{}, fmt.Errorf("major %d: %w", major, ErrUnsupportedMilestone)
	}

	url := fmt.Sprintf("%s/LATEST_RELEASE_%d", c.baseURL, major)
	body, err := c.get(ctx, url)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return chromever.Version{}, fmt.Errorf("major %d: %w", major, ErrNoRelease)
		}
		return chromever.Version{}, fmt.Errorf("latest release for %d: %w", major, err)
	}

	v, err := chromever.Parse(string(body))
	if err != nil {
		return chromever.Version{}, fmt.Errorf("latest release for %d: %w", major, err)
	}
	return v, nil
}

// Feed is a fetched snapshot of the known-good-versions feed.
type Feed struct {
	entries []knownGoodEntry
}

// FetchFeed downloads and decodes the known-good-versions feed once, so
// callers can run the fetch concurrently with other work and do lookups
// locally.
func (c *Client) FetchFeed(ctx context.Context) (*Feed, error) {
	feed, err := c.knownGood(ctx)
	if err != nil {
		return nil, err
	}
	return &Feed{entries: feed.Versions}, nil
}

// Download finds the chromedriver download for an exact version and
// platform in the snapshot.
func (f *Feed) Download(version chromever.Version, platform Platform) (Release, error) {
	want := version.String()
	for _, entry := range f.entries {
		if entry.Version != want {
			continue
		}
		for _, dl := range entry.Downloads.Chromedriver {
			if dl.Platform == platform {
				return Release{Version: version, Platform: platform, URL: dl.URL}, nil
			}
		}
		return Release{}, fmt.Errorf("version %s, platform %s: %w", want, platform, ErrNoDownload)
	}
	return Release{}, fmt.Errorf("version %s not in known-good feed: %w", want, ErrNoRelease)
}

// ResolveDownload finds the chromedriver download URL for an exact
// version and platform in the known-good feed.
func (c *Client) ResolveDownload(ctx context.Context, version chromever.Version, platform Platform) (Release, error) {
	feed, err := c.FetchFeed(ctx)
	if err != nil {
		return Release{}, err
	}
	return feed.Download(version, platform)
}

// Resolve is the common path: latest driver for a milestone, with its
// download URL for the given platform.
func (c *Client) Resolve(ctx context.Context, major int, platform Platform) (Release, error) {
	v, err := c.LatestForMajor(ctx, major)
	if err != nil {
		return Release{}, err
	}
	return c.ResolveDownload(ctx, v, platform)
}

func (c *Client) knownGood(ctx context.Context) (*knownGoodFeed, error) {
	url := c.baseURL + "/known-good-versions-with-downloads.json"
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("known-good feed: %w", err)
	}

	var feed knownGoodFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode known-good feed: %w", err)
	}
	return &feed, nil
}

// errNotFound marks a definitive 404 so callers can map it to a domain
// error instead of retrying.
var errNotFound = errors.New("not found")

// get fetches a URL with bounded retries. Network errors, 429 and 5xx
// are retried with exponential backoff; other statuses fail fast.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoffBase << uint(attempt-1)
			if backoff > c.retryBackoffMax {
				backoff = c.retryBackoffMax
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("GET %s: %w", url, err)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				lastErr = fmt.Errorf("read %s: %w", url, readErr)
				continue
			}
			return []byte(strings.TrimSpace(string(body))), nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("GET %s: %w", url, errNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
			continue
		default:
			return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}
