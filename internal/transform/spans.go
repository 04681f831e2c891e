package transform

import (
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/hossain-khan/social-sync/internal/post"
)

// expandSpans replaces every link annotation that carries a URI with that
// URI. Offsets index the UTF-8 bytes of text. Spans are applied from the end
// of the buffer backwards so earlier offsets stay valid.
func expandSpans(text string, annotations []post.Annotation, logger *slog.Logger) string {
	spans := make([]post.Annotation, 0, len(annotations))
	for _, a := range annotations {
		if a.Kind == post.AnnotationLink && a.URI != "" {
			spans = append(spans, a)
		}
	}
	if len(spans) == 0 {
		return text
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Start > spans[j].Start
	})

	buf := []byte(text)
	floor := len(buf) + 1 // start of the last applied span
	for _, s := range spans {
		if reason := invalidSpan(buf, s, floor); reason != "" {
			logger.Warn("skipping annotation span",
				"start", s.Start,
				"end", s.End,
				"reason", reason,
			)
			continue
		}
		if string(buf[s.Start:s.End]) == s.URI {
			floor = s.Start
			continue
		}
		out := make([]byte, 0, len(buf)-(s.End-s.Start)+len(s.URI))
		out = append(out, buf[:s.Start]...)
		out = append(out, s.URI...)
		out = append(out, buf[s.End:]...)
		buf = out
		floor = s.Start
	}
	return string(buf)
}

func invalidSpan(buf []byte, s post.Annotation, floor int) string {
	switch {
	case s.Start < 0:
		return "negative start"
	case s.End > len(buf):
		return "end past text"
	case s.Start >= s.End:
		return "empty range"
	case s.End > floor:
		return "overlaps another span"
	case !boundary(buf, s.Start) || !boundary(buf, s.End):
		return "splits a UTF-8 sequence"
	case !utf8.ValidString(s.URI):
		return "invalid URI encoding"
	}
	return ""
}

func boundary(buf []byte, i int) bool {
	return i == len(buf) || utf8.RuneStart(buf[i])
}
