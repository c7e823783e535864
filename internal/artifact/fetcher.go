package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/neurofinance/spready/internal/backend"
	"github.com/neurofinance/spready/internal/log"
)

// Getter fetches raw bytes from a server path. Satisfied by the public
// backend client; defined here so tests can substitute a fake.
type Getter interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Fetcher downloads generated HTML artifacts and renders them for the
// terminal.
type Fetcher struct {
	client Getter
	logger log.Logger
}

// NewFetcher creates a Fetcher. client should be the credential-free backend
// client; served artifacts require no authentication.
func NewFetcher(client Getter, logger log.Logger) *Fetcher {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch downloads the artifact's HTML. A backend 404 maps to ErrNotFound.
func (f *Fetcher) Fetch(ctx context.Context, a Artifact) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	data, err := f.client.Fetch(ctx, a.Path())
	if err != nil {
		if backend.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, a.Filename)
		}
		return nil, fmt.Errorf("fetch artifact %s: %w", a.Filename, err)
	}
	return data, nil
}

// FetchText downloads the artifact and reduces it to readable text.
func (f *Fetcher) FetchText(ctx context.Context, a Artifact) (string, error) {
	data, err := f.Fetch(ctx, a)
	if err != nil {
		return "", err
	}

	text, err := RenderText(data)
	if err != nil {
		// Unparseable HTML still has some value as raw text.
		f.logger.Warn("artifact HTML unparseable, showing raw", "file", a.Filename, "error", err)
		return string(data), nil
	}
	return text, nil
}

// RenderText extracts the readable content of an HTML document: title,
// headings, paragraphs, list items and tables. Scripts and styles are
// dropped. Table rows come out as tab-separated cells, which lines up well
// enough for the monospaced artifact pane.
func RenderText(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse artifact HTML: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var b strings.Builder

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", len(title)))
		b.WriteString("\n\n")
	}

	doc.Find("h1, h2, h3, h4, h5, h6, p, li, table").Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "table" {
			writeTable(&b, sel)
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		if strings.HasPrefix(goquery.NodeName(sel), "h") {
			b.WriteString("\n## ")
			b.WriteString(text)
			b.WriteString("\n")
			return
		}
		b.WriteString(text)
		b.WriteString("\n")
	})

	out := strings.TrimSpace(b.String())
	if out == "" {
		// Charts rendered purely in JavaScript carry no extractable text.
		return "(no readable content; open the file in a browser for the full visualization)", nil
	}
	return out, nil
}

func writeTable(b *strings.Builder, table *goquery.Selection) {
	b.WriteString("\n")
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(cell.Text()))
		})
		if len(cells) > 0 {
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteString("\n")
		}
	})
}

// IsNotFound reports whether err indicates a missing artifact.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
