package transform

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// URLWeight is the number of characters the destination charges for any
// http(s) URL regardless of its length.
const URLWeight = 23

const ellipsis = "..."

var (
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Count returns the effective length of text under destination rules:
// one per rune, URLWeight per URL.
func Count(text string) int {
	n := 0
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		n += utf8.RuneCountInString(text[last:loc[0]])
		n += URLWeight
		last = loc[1]
	}
	return n + utf8.RuneCountInString(text[last:])
}

// Truncate shortens text so that Count(result) <= limit. Text already within
// the limit is returned unchanged. Otherwise the cut happens at the last
// whitespace boundary that leaves room for "...", falling back to a rune
// boundary when the first word alone is too long. URLs are never split.
func Truncate(text string, limit int) string {
	if Count(text) <= limit {
		return text
	}
	if limit <= len(ellipsis) {
		return ellipsis[:max(limit, 0)]
	}
	budget := limit - len(ellipsis)

	best := -1
	for _, loc := range whitespacePattern.FindAllStringIndex(text, -1) {
		if loc[0] == 0 {
			continue
		}
		if Count(text[:loc[0]]) > budget {
			break
		}
		best = loc[0]
	}
	if best > 0 {
		return text[:best] + ellipsis
	}
	return hardCut(text, budget) + ellipsis
}

// hardCut returns the longest prefix of text with Count <= budget that does
// not end inside a URL.
func hardCut(text string, budget int) string {
	urls := urlPattern.FindAllStringIndex(text, -1)
	n, i := 0, 0
	for i < len(text) {
		if len(urls) > 0 && urls[0][0] == i {
			if n+URLWeight > budget {
				return strings.TrimRightFunc(text[:i], unicode.IsSpace)
			}
			n += URLWeight
			i = urls[0][1]
			urls = urls[1:]
			continue
		}
		if n+1 > budget {
			return text[:i]
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		n++
		i += size
	}
	return text
}
