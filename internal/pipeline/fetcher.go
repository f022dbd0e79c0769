package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/plancheck/internal/cache"
	"github.com/ppiankov/plancheck/internal/logger"
	"github.com/ppiankov/plancheck/internal/model"
	"github.com/ppiankov/plancheck/internal/util"
	"github.com/ppiankov/plancheck/internal/worker"
)

var (
	// ErrTooLarge is returned when a document exceeds the configured body limit
	ErrTooLarge = errors.New("document exceeds size limit")

	errTooManyRedirects = errors.New("too many redirects")
)

// fetchSleepFunc is replaced in tests
var fetchSleepFunc = time.Sleep

// StatusError is a non-2xx response from a document host
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Fetcher downloads code documents by URL
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
	robots     *util.RobotsChecker // nil when robots.txt is ignored
	limiter    *worker.Limiter     // per-host pacing, may be nil
}

// NewFetcher creates a Fetcher from the HTTP configuration. robotsCache holds
// robots.txt responses and may be nil.
func NewFetcher(cfg model.HTTPConfig, limiter *worker.Limiter, robotsCache cache.Cache) *Fetcher {
	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:               util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects: %w", maxRedirects, errTooManyRedirects)
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
		maxRetries: cfg.MaxRetries,
		limiter:    limiter,
	}
	if f.maxRetries < 1 {
		f.maxRetries = 1
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(client, cfg.UserAgent, robotsCache, time.Hour)
	}
	return f
}

// FetchResult contains a downloaded document and where it came from
type FetchResult struct {
	Data        []byte
	ContentType string
	Name        string // File name derived from the final URL
	FinalURL    string
}

// Fetch downloads rawURL, retrying transient failures with exponential backoff
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	if f.robots != nil {
		policy, err := f.robots.Policy(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !policy.Allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, util.ErrDisallowed)
		}
		if policy.CrawlDelay > 0 && f.limiter != nil {
			f.limiter.SetRate(parsed.Host, 1/policy.CrawlDelay.Seconds(), 1)
		}
	}

	backoff := time.Second
	for attempt := 1; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.WaitURL(ctx, rawURL); err != nil {
				return nil, err
			}
		}

		result, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		if attempt >= f.maxRetries || !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}

		logger.Debug("retrying document fetch", "url", rawURL, "attempt", attempt, "error", err)
		fetchSleepFunc(backoff)
		backoff *= 2
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/pdf,text/html;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%d bytes: %w", resp.ContentLength, ErrTooLarge)
	}

	body, err := readLimited(resp.Body, f.maxBytes)
	if err != nil {
		return nil, err
	}

	finalURL := resp.Request.URL.String()
	return &FetchResult{
		Data:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Name:        documentName(resp.Request.URL, resp.Header.Get("Content-Type")),
		FinalURL:    finalURL,
	}, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("more than %d bytes: %w", maxBytes, ErrTooLarge)
	}
	return body, nil
}

// isRetryableFetchError reports whether a fetch failure is worth another attempt:
// rate limiting, server errors and transport failures.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, errTooManyRedirects) || errors.Is(err, ErrTooLarge) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// documentName picks a file name for a downloaded document. It is only a
// format hint, so a missing extension is filled in from the content type.
func documentName(u *url.URL, contentType string) string {
	name := path.Base(strings.TrimSuffix(u.Path, "/"))
	switch {
	case name == "." || name == "/" || name == "":
		name = u.Host
	case path.Ext(name) != "":
		return name
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/pdf":
		return name + ".pdf"
	case "text/html", "application/xhtml+xml":
		return name + ".html"
	case "text/plain":
		return name + ".txt"
	}
	return name
}
