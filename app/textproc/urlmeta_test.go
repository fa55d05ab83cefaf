package textproc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avoronov/newsmux/app/cfg"
)

func newTestResolver(t *testing.T) *URLMetaResolver {
	t.Helper()
	cfg.Set(&cfg.Cfg{UserAgent: "test-agent"})
	return &URLMetaResolver{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		userAgent:  "test-agent",
	}
}

func TestDisplayNamePrefersDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:description" content="Short summary of the page">
			<meta property="og:title" content="Page Title">
			<title>Doc Title</title>
		</head><body></body></html>`))
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	name := resolver.DisplayName(context.Background(), server.URL)
	if name != "Short summary of the page" {
		t.Errorf("Expected og:description, got %q", name)
	}
}

func TestDisplayNameFallsBackToTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Doc Title</title></head><body></body></html>`))
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	name := resolver.DisplayName(context.Background(), server.URL)
	if name != "Doc Title" {
		t.Errorf("Expected document title, got %q", name)
	}
}

func TestDisplayNameLongDescriptionUsesTitle(t *testing.T) {
	long := make([]byte, 0, 150)
	for i := 0; i < 150; i++ {
		long = append(long, 'x')
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:description" content="` + string(long) + `">
			<meta property="og:title" content="Page Title">
		</head><body></body></html>`))
	}))
	defer server.Close()

	resolver := newTestResolver(t)

	name := resolver.DisplayName(context.Background(), server.URL)
	if name != "Page Title" {
		t.Errorf("Expected og:title when description too long, got %q", name)
	}
}

func TestDisplayNameUnreachableHostUsesDomain(t *testing.T) {
	resolver := newTestResolver(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	name := resolver.DisplayName(ctx, "https://www.example.invalid/some/path")
	if name != "example.invalid" {
		t.Errorf("Expected host fallback, got %q", name)
	}
}

func TestHostName(t *testing.T) {
	if got := hostName("https://www.example.com/a?b=c"); got != "example.com" {
		t.Errorf("Expected example.com, got %q", got)
	}
	if got := hostName("not a url"); got != "not a url" {
		t.Errorf("Expected raw value back, got %q", got)
	}
}
