package pipeline

import (
	"context"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"github.com/avoronov/newsmux/app/database"
)

const messageTemplateText = `<b>{{ .Headline }}</b>

{{ .Summary }}
{{ if .Sources }}
{{ range .Sources }}— <a href="{{ .Link }}">{{ .Label }}</a>
{{ end }}{{ end }}{{ if .Tags }}
{{ .Tags }}{{ end }}`

const digestTemplateText = `<b>📰 Top stories for {{ .Date }}</b>
{{ range .Entries }}
{{ .Number }}. {{ .Line }}
{{ end }}`

var (
	messageTemplate = template.Must(template.New("message").Parse(messageTemplateText))
	digestTemplate  = template.Must(template.New("digest").Parse(digestTemplateText))
)

type messageSource struct {
	Link  string
	Label string
}

type messageData struct {
	Headline string
	Summary  string
	Sources  []messageSource
	Tags     string
}

// Formatter renders outgoing item text from the summaries and links of all
// contributing sources.
type Formatter struct {
	nameResolver NameResolver
}

func NewFormatter(nameResolver NameResolver) *Formatter {
	return &Formatter{nameResolver: nameResolver}
}

// Render builds the published message. Contributors must be ordered by
// original post time ascending; the founding (oldest) contributor supplies
// the headline and summary, every contributor supplies a source link.
func (f *Formatter) Render(ctx context.Context, contributors []database.IngestedItem) (string, error) {
	if len(contributors) == 0 {
		return "", fmt.Errorf("outgoing item has no contributors")
	}

	founder := contributors[0]
	data := messageData{
		Headline: html.EscapeString(founder.Headline),
		Summary:  html.EscapeString(founder.Summary),
		Tags:     strings.Join(founder.Tags, " "),
	}

	seen := make(map[string]bool)
	for _, item := range contributors {
		link, label := f.sourceLink(ctx, item)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		data.Sources = append(data.Sources, messageSource{Link: link, Label: html.EscapeString(label)})
	}

	var sb strings.Builder
	if err := messageTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render message: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}

// sourceLink picks the contributor's public post link when present, falling
// back to the first extracted URL with a fetched display name.
func (f *Formatter) sourceLink(ctx context.Context, item database.IngestedItem) (string, string) {
	if item.PublicLink != "" {
		label := item.Author
		if label == "" {
			label = item.ChannelID
		}
		return item.PublicLink, label
	}
	if len(item.URLs) > 0 {
		url := item.URLs[0]
		return url, f.nameResolver.DisplayName(ctx, url)
	}
	return "", ""
}

type digestEntry struct {
	Number int
	Line   string
}

// RenderDigest builds the pinned daily digest from the ranked items.
func (f *Formatter) RenderDigest(date time.Time, items []database.OutgoingItem) (string, error) {
	entries := make([]digestEntry, 0, len(items))
	for i, item := range items {
		entries = append(entries, digestEntry{Number: i + 1, Line: digestLine(item)})
	}

	var sb strings.Builder
	err := digestTemplate.Execute(&sb, struct {
		Date    string
		Entries []digestEntry
	}{Date: date.Format("2 January 2006"), Entries: entries})
	if err != nil {
		return "", fmt.Errorf("failed to render digest: %w", err)
	}

	return strings.TrimSpace(sb.String()), nil
}

// digestLine is the item's headline: the bold first line of its rendered
// text, kept as-is since it is already HTML-escaped.
func digestLine(item database.OutgoingItem) string {
	line := item.Text
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	return strings.TrimSpace(line)
}
