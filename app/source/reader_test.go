package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avoronov/newsmux/app/channel"
)

func feedXML(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<link>https://example.com</link>
` + items + `
</channel>
</rss>`
}

func feedItem(guid, title, pubDate string) string {
	return fmt.Sprintf(`<item>
<guid>%s</guid>
<title>%s</title>
<link>https://example.com/%s</link>
<description>Body of %s</description>
<pubDate>%s</pubDate>
</item>
`, guid, title, guid, guid, pubDate)
}

func testChannel(url string) *channel.Config {
	ch := &channel.Config{ID: "test", URL: url, Name: "Test Feed"}
	ch.Settings.Enabled = true
	ch.Settings.Timeout = 5
	return ch
}

func TestListNewItems(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("Expected configured user agent, got %q", ua)
		}
		w.Write([]byte(feedXML(
			feedItem("p1", "First", now.Add(-2*time.Hour).Format(time.RFC1123Z)) +
				feedItem("p2", "Second", now.Add(-time.Hour).Format(time.RFC1123Z)),
		)))
	}))
	defer server.Close()

	reader := NewReader(server.Client(), "test-agent", 100)

	items, err := reader.ListNewItems(context.Background(), testChannel(server.URL),
		now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.SourceGUID != "p1" {
		t.Errorf("Expected guid p1, got %q", first.SourceGUID)
	}
	if first.ChannelID != "test" {
		t.Errorf("Expected channel id test, got %q", first.ChannelID)
	}
	if first.PublicLink != "https://example.com/p1" {
		t.Errorf("Expected item link, got %q", first.PublicLink)
	}
	if first.Text != "Body of p1" {
		t.Errorf("Expected description as text, got %q", first.Text)
	}
	if first.Author != "Test Feed" {
		t.Errorf("Expected feed title as author fallback, got %q", first.Author)
	}
}

func TestListNewItemsBoundsWindow(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML(
			feedItem("old", "Old", now.Add(-48*time.Hour).Format(time.RFC1123Z)) +
				feedItem("in", "In window", now.Add(-time.Hour).Format(time.RFC1123Z)),
		)))
	}))
	defer server.Close()

	reader := NewReader(server.Client(), "test-agent", 100)

	items, err := reader.ListNewItems(context.Background(), testChannel(server.URL),
		now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 1 || items[0].SourceGUID != "in" {
		t.Errorf("Expected only the in-window item, got %v", items)
	}
}

func TestListNewItemsHonorsLimit(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body string
		for i := 0; i < 10; i++ {
			body += feedItem(fmt.Sprintf("p%d", i), fmt.Sprintf("Post %d", i),
				now.Add(-time.Duration(i+1)*time.Minute).Format(time.RFC1123Z))
		}
		w.Write([]byte(feedXML(body)))
	}))
	defer server.Close()

	reader := NewReader(server.Client(), "test-agent", 3)

	items, err := reader.ListNewItems(context.Background(), testChannel(server.URL),
		now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(items) != 3 {
		t.Errorf("Expected limit of 3 items, got %d", len(items))
	}
}

func TestListNewItemsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	reader := NewReader(server.Client(), "test-agent", 100)

	_, err := reader.ListNewItems(context.Background(), testChannel(server.URL),
		time.Now().Add(-24*time.Hour), time.Now())
	if err == nil {
		t.Error("Expected error on HTTP failure")
	}
}
