package transform

import (
	"fmt"
	"strings"

	"github.com/hossain-khan/social-sync/internal/post"
)

const (
	// QuotePreviewLength is the number of characters of quoted text shown.
	QuotePreviewLength = 100

	depthMarker    = "[Additional quoted content omitted due to depth...]"
	circularMarker = "[Circular quote reference detected]"
)

// renderEmbed appends the textual form of e to b. body is the post text the
// embed belongs to, used to suppress link cards that repeat a URL. describe
// lists images that must be described in text.
func (t *Transformer) renderEmbed(b *strings.Builder, body string, e post.Embed, depth int, visited map[string]bool, describe []post.Image) {
	switch v := e.(type) {
	case nil:
	case post.ExternalLink:
		renderExternal(b, body, v)
	case *post.ExternalLink:
		if v != nil {
			renderExternal(b, body, *v)
		}
	case post.ImageSet:
		renderImages(b, describe)
	case *post.ImageSet:
		renderImages(b, describe)
	case post.QuoteRecord:
		t.renderQuote(b, v, depth, visited)
	case *post.QuoteRecord:
		if v != nil {
			t.renderQuote(b, *v, depth, visited)
		}
	case post.QuoteWithMedia:
		t.renderQuote(b, v.Quote, depth, visited)
		renderImages(b, describe)
	case *post.QuoteWithMedia:
		if v != nil {
			t.renderQuote(b, v.Quote, depth, visited)
			renderImages(b, describe)
		}
	case post.UnknownEmbed:
		t.logger.Debug("ignoring unknown embed", "type", v.Type)
	default:
		t.logger.Debug("ignoring unknown embed", "type", fmt.Sprintf("%T", e))
	}
}

func renderExternal(b *strings.Builder, body string, link post.ExternalLink) {
	if link.URI == "" || strings.Contains(body, link.URI) {
		return
	}
	title := link.Title
	if title == "" {
		title = "Link"
	}
	fmt.Fprintf(b, "\n\n🔗 %s: %s", title, link.URI)
	if link.Description != "" {
		b.WriteString("\n" + link.Description)
	}
}

func renderImages(b *strings.Builder, images []post.Image) {
	if len(images) == 0 {
		return
	}
	b.WriteString("\n\n📷 " + imageCount(len(images)))
	var alts []string
	for _, img := range images {
		if alt := strings.TrimSpace(img.Alt); alt != "" {
			alts = append(alts, alt)
		}
	}
	if len(alts) > 0 {
		b.WriteString("\nAlt text: " + strings.Join(alts, " | "))
	}
}

func imageCount(n int) string {
	if n == 1 {
		return "[1 image]"
	}
	return fmt.Sprintf("[%d images]", n)
}

func (t *Transformer) renderQuote(b *strings.Builder, q post.QuoteRecord, depth int, visited map[string]bool) {
	if depth > t.maxQuoteDepth {
		b.WriteString("\n\n" + depthMarker)
		return
	}
	if q.ID != "" && visited[q.ID] {
		b.WriteString("\n\n" + circularMarker)
		return
	}
	if q.ID != "" {
		visited[q.ID] = true
	}

	handle := q.AuthorHandle
	if handle == "" {
		handle = q.AuthorID
	}
	if handle == "" && q.Text == "" {
		return
	}
	if handle == "" {
		handle = "unknown"
	}
	fmt.Fprintf(b, "\n\nQuoting @%s:", handle)
	if q.Text != "" {
		b.WriteString("\n> " + preview(q.Text, QuotePreviewLength))
	}

	// Images inside a quote belong to the quoted author and are never
	// uploaded, so they are always described.
	t.renderEmbed(b, q.Text, q.Embed, depth+1, visited, post.ImagesOf(q.Embed))
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
