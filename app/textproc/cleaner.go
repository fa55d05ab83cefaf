package textproc

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	htmlTagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	markdownRe   = regexp.MustCompile(`[*_~]{1,3}([^*_~]+)[*_~]{1,3}`)
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)
	urlRe        = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	hashtagRe    = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	multiSpaceRe = regexp.MustCompile(`[ \t]+`)
	multiLineRe  = regexp.MustCompile(`\n{3,}`)
)

var lowerCaser = cases.Lower(language.Und)

// CleanResult is the outcome of the clean stage for a single item.
type CleanResult struct {
	Text string   // normalized plain text, markup and hashtags removed
	URLs []string // extracted links, in order of first occurrence
	Tags []string // hashtag tokens removed from the body
}

// Cleaner strips markup from raw post text, extracts links and hashtag
// tokens, and normalizes the remaining text.
type Cleaner struct{}

func NewCleaner() *Cleaner {
	return &Cleaner{}
}

func (c *Cleaner) Run(raw string) CleanResult {
	text := raw

	// Markdown links first, so their URLs survive tag stripping.
	text = mdLinkRe.ReplaceAllString(text, "$1 $2")

	// <br> and block-level closers become newlines before tags go away.
	text = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>`).ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = markdownRe.ReplaceAllString(text, "$1")

	urls := c.extractURLs(text)
	text = urlRe.ReplaceAllString(text, "")

	tags := c.extractTags(text)
	text = hashtagRe.ReplaceAllString(text, "")

	text = norm.NFKC.String(text)
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = multiLineRe.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.TrimSpace(strings.Join(lines, "\n"))

	return CleanResult{Text: text, URLs: urls, Tags: tags}
}

func (c *Cleaner) extractURLs(text string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, match := range urlRe.FindAllString(text, -1) {
		url := strings.TrimRight(match, ".,;:!?")
		if !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}
	return urls
}

func (c *Cleaner) extractTags(text string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, match := range hashtagRe.FindAllString(text, -1) {
		tag := lowerCaser.String(match)
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
