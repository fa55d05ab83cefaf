package textproc

import (
	"strings"
	"testing"
)

func TestCleanerStripsHTML(t *testing.T) {
	cleaner := NewCleaner()

	result := cleaner.Run("<p>Hello <b>world</b></p><p>Second line</p>")

	if result.Text != "Hello world\nSecond line" {
		t.Errorf("Expected 'Hello world\\nSecond line', got %q", result.Text)
	}
}

func TestCleanerStripsMarkdown(t *testing.T) {
	cleaner := NewCleaner()

	result := cleaner.Run("Some **bold** and _italic_ text")

	if result.Text != "Some bold and italic text" {
		t.Errorf("Expected markdown removed, got %q", result.Text)
	}
}

func TestCleanerExtractsURLs(t *testing.T) {
	cleaner := NewCleaner()

	result := cleaner.Run("Check this out https://example.com/post. And again https://example.com/post")

	if len(result.URLs) != 1 {
		t.Fatalf("Expected 1 unique URL, got %d", len(result.URLs))
	}
	if result.URLs[0] != "https://example.com/post" {
		t.Errorf("Expected trailing punctuation trimmed, got %q", result.URLs[0])
	}
	if strings.Contains(result.Text, "https://") {
		t.Errorf("Expected URLs removed from text, got %q", result.Text)
	}
}

func TestCleanerExtractsMarkdownLinkURL(t *testing.T) {
	cleaner := NewCleaner()

	result := cleaner.Run("Read [the article](https://example.com/article) now")

	if len(result.URLs) != 1 || result.URLs[0] != "https://example.com/article" {
		t.Errorf("Expected markdown link URL extracted, got %v", result.URLs)
	}
	if !strings.Contains(result.Text, "the article") {
		t.Errorf("Expected link label kept in text, got %q", result.Text)
	}
}

func TestCleanerExtractsHashtags(t *testing.T) {
	cleaner := NewCleaner()

	result := cleaner.Run("Big news today #Tech #AI_news")

	if len(result.Tags) != 2 {
		t.Fatalf("Expected 2 tags, got %v", result.Tags)
	}
	if result.Tags[0] != "#tech" || result.Tags[1] != "#ai_news" {
		t.Errorf("Expected lowercased tags, got %v", result.Tags)
	}
	if strings.Contains(result.Text, "#") {
		t.Errorf("Expected hashtags removed from text, got %q", result.Text)
	}
}

func TestCleanerUnescapesEntities(t *testing.T) {
	cleaner := NewCleaner()

	result := cleaner.Run("Fish &amp; chips &mdash; classic")

	if !strings.Contains(result.Text, "Fish & chips") {
		t.Errorf("Expected entities unescaped, got %q", result.Text)
	}
}

func TestCleanerCollapsesWhitespace(t *testing.T) {
	cleaner := NewCleaner()

	result := cleaner.Run("too   many    spaces\n\n\n\nand blank lines")

	if result.Text != "too many spaces\n\nand blank lines" {
		t.Errorf("Expected whitespace collapsed, got %q", result.Text)
	}
}

func TestCleanerShortPostKeepsURL(t *testing.T) {
	cleaner := NewCleaner()

	result := cleaner.Run("Look: https://example.com/longread")

	if len(result.Text) >= 100 {
		t.Errorf("Expected short cleaned text, got %d chars", len(result.Text))
	}
	if len(result.URLs) != 1 {
		t.Errorf("Expected URL preserved for link extraction, got %v", result.URLs)
	}
}
