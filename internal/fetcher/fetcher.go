// Package fetcher retrieves snapshots of live streams and new videos from
// upstream platforms.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"streamwatch/internal/model"
)

var (
	// ErrFetch is returned once all attempts of a request have failed.
	// It never means "zero items".
	ErrFetch = errors.New("fetch failed")
	// ErrNoData is returned when the upstream answered without an item list.
	ErrNoData = errors.New("no data in response")
	// ErrTruncated is returned together with a partial snapshot when
	// pagination stopped at Config.MaxPages.
	ErrTruncated = errors.New("snapshot truncated")
)

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Config holds upstream credentials and retry settings.
type Config struct {
	// TwitchClient carries the Twitch app token. Defaults to the plain client.
	TwitchClient   HTTPClient
	TwitchClientID string
	GoogleAPIKey   string

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// MaxPages bounds cursor pagination.
	MaxPages int
}

// Fetcher downloads source snapshots.
type Fetcher struct {
	client HTTPClient
	cfg    Config
	retry  retrypolicy.RetryPolicy[[]byte]
	now    func() time.Time
}

// New creates a Fetcher using client for unauthenticated requests.
func New(client HTTPClient, cfg Config) *Fetcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay << (cfg.MaxAttempts - 1)
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.TwitchClient == nil {
		cfg.TwitchClient = client
	}

	policy := retrypolicy.NewBuilder[[]byte]().
		WithMaxAttempts(cfg.MaxAttempts).
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithJitterFactor(0.1).
		Build()

	return &Fetcher{
		client: client,
		cfg:    cfg,
		retry:  policy,
		now:    time.Now,
	}
}

// Fetch returns the current items of src.
func (f *Fetcher) Fetch(ctx context.Context, src model.Source) ([]model.Item, error) {
	switch src.Platform {
	case model.PlatformTwitch:
		return f.twitchStreams(ctx, src)
	case model.PlatformYouTube:
		if src.Kind == model.KindStreams {
			return f.youtubeStreams(ctx, src)
		}
		return f.youtubeVideos(ctx, src)
	case model.PlatformYouTubeFeed:
		return f.feedVideos(ctx, src)
	default:
		return nil, fmt.Errorf("unsupported platform %q", src.Platform)
	}
}

// get performs a GET through the retry policy and returns the body.
func (f *Fetcher) get(ctx context.Context, client HTTPClient, url string, header http.Header) ([]byte, error) {
	body, err := failsafe.With[[]byte](f.retry).WithContext(ctx).Get(func() ([]byte, error) {
		return f.getOnce(ctx, client, url, header)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return body, nil
}

func (f *Fetcher) getOnce(ctx context.Context, client HTTPClient, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "StreamWatch/1.0")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &StatusError{URL: redact(req), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// redact strips the query string so API keys stay out of logs.
func redact(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
