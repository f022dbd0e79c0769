package util

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/ppiankov/plancheck/internal/cache"
)

// ErrDisallowed is returned when robots.txt forbids fetching a document
var ErrDisallowed = errors.New("disallowed by robots.txt")

// maxRobotsBytes caps how much of a robots.txt body is read
const maxRobotsBytes = 512 << 10

// RobotsPolicy is the robots.txt verdict for one URL
type RobotsPolicy struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker checks code-document URLs against the host's robots.txt.
// Raw responses are kept in a cache so repeated downloads from the same
// authority site do not refetch the file.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	agent     string
	cache     cache.Cache
	ttl       time.Duration
}

// NewRobotsChecker creates a checker. A nil cache gets a private in-memory one.
func NewRobotsChecker(client *http.Client, userAgent string, c cache.Cache, ttl time.Duration) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if c == nil {
		c = cache.NewMemoryCache(ttl, 10*time.Minute)
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		agent:     NormalizeUserAgent(userAgent),
		cache:     c,
		ttl:       ttl,
	}
}

// Policy returns the robots.txt verdict for rawURL. When robots.txt cannot be
// fetched at all the URL is allowed.
func (r *RobotsChecker) Policy(ctx context.Context, rawURL string) (RobotsPolicy, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return RobotsPolicy{}, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return RobotsPolicy{}, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	data, err := r.robotsData(ctx, parsed)
	if err != nil {
		return RobotsPolicy{Allowed: true}, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	policy := RobotsPolicy{Allowed: data.TestAgent(path, r.agent)}
	if group := data.FindGroup(r.agent); group != nil {
		policy.CrawlDelay = group.CrawlDelay
	}
	return policy, nil
}

// Check returns ErrDisallowed when rawURL may not be fetched
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) error {
	policy, err := r.Policy(ctx, rawURL)
	if err != nil {
		return err
	}
	if !policy.Allowed {
		return fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
	}
	return nil
}

func (r *RobotsChecker) robotsData(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	origin := target.Scheme + "://" + target.Host
	key := cache.Key("robots", origin)

	if raw, ok := r.cache.Get(key); ok && len(raw) >= 2 {
		return robotstxt.FromStatusAndBytes(int(binary.BigEndian.Uint16(raw)), raw[2:])
	}

	status, body, err := r.fetch(ctx, origin+"/robots.txt")
	if err != nil {
		return nil, err
	}

	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	raw := make([]byte, 2, 2+len(body))
	binary.BigEndian.PutUint16(raw, uint16(status))
	_ = r.cache.Set(key, append(raw, body...), r.ttl)

	return data, nil
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read robots.txt: %w", err)
	}
	return resp.StatusCode, body, nil
}

// NormalizeUserAgent reduces a user agent to the product token robots.txt groups match on
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}
