package util

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func robotsServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRobotsChecker_Policy(t *testing.T) {
	body := `User-agent: plancheck
Disallow: /private/
Crawl-delay: 2

User-agent: *
Disallow: /
`
	server := robotsServer(t, http.StatusOK, body, nil)
	checker := NewRobotsChecker(server.Client(), "plancheck/0.3 (+https://github.com/ppiankov/plancheck)", nil, time.Minute)
	ctx := context.Background()

	policy, err := checker.Policy(ctx, server.URL+"/codes/ncc-part-d.pdf")
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}
	if !policy.Allowed {
		t.Error("expected /codes/ to be allowed for plancheck")
	}
	if policy.CrawlDelay != 2*time.Second {
		t.Errorf("expected crawl delay 2s, got %v", policy.CrawlDelay)
	}

	if err := checker.Check(ctx, server.URL+"/private/draft.pdf"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
}

func TestRobotsChecker_MissingRobotsAllowsAll(t *testing.T) {
	server := robotsServer(t, http.StatusNotFound, "", nil)
	checker := NewRobotsChecker(server.Client(), "plancheck", nil, time.Minute)

	if err := checker.Check(context.Background(), server.URL+"/anything.pdf"); err != nil {
		t.Errorf("expected allowed without robots.txt, got %v", err)
	}
}

func TestRobotsChecker_CachesPerOrigin(t *testing.T) {
	var hits int32
	server := robotsServer(t, http.StatusOK, "User-agent: *\nDisallow: /admin\n", &hits)
	checker := NewRobotsChecker(server.Client(), "plancheck", nil, time.Minute)
	ctx := context.Background()

	for _, path := range []string{"/a.pdf", "/b.pdf", "/admin/c.pdf"} {
		_, _ = checker.Policy(ctx, server.URL+path)
	}

	if hits != 1 {
		t.Errorf("expected robots.txt to be fetched once, got %d", hits)
	}
	if err := checker.Check(ctx, server.URL+"/admin/c.pdf"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected cached rules to still disallow /admin, got %v", err)
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	server := robotsServer(t, http.StatusOK, "", nil)
	url := server.URL
	server.Close()

	checker := NewRobotsChecker(&http.Client{Timeout: time.Second}, "plancheck", nil, time.Minute)
	policy, err := checker.Policy(context.Background(), url+"/a.pdf")
	if err != nil || !policy.Allowed {
		t.Errorf("expected allow on fetch failure, got %+v %v", policy, err)
	}
}

func TestRobotsChecker_BadURL(t *testing.T) {
	checker := NewRobotsChecker(nil, "plancheck", nil, 0)
	if _, err := checker.Policy(context.Background(), "ftp://codes.example.org/a.pdf"); err == nil {
		t.Error("expected an error for a non-http URL")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plancheck/0.3 (+https://github.com/ppiankov/plancheck)", "plancheck"},
		{"plancheck", "plancheck"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeUserAgent(tt.in); got != tt.want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
