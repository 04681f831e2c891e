package engine

import (
	"regexp"
	"strings"

	"github.com/hossain-khan/social-sync/internal/post"
)

// DefaultOptOutTag marks a post that must never be synced.
const DefaultOptOutTag = "#no-sync"

// optOutMatcher detects the opt-out tag as a whole hashtag in any casing.
// "#no-sync" matches; "#nosync", "#no-synchronization" and "#no-sync-please"
// do not.
type optOutMatcher struct {
	tag     string // without the leading '#', lower case
	pattern *regexp.Regexp
}

func newOptOutMatcher(tag string) *optOutMatcher {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	if tag == "" {
		tag = strings.TrimPrefix(DefaultOptOutTag, "#")
	}
	return &optOutMatcher{
		tag:     strings.ToLower(tag),
		pattern: regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_#-])#` + regexp.QuoteMeta(tag) + `(?:$|[^\p{L}\p{N}_-])`),
	}
}

// matches reports whether item carries the opt-out tag, either in its text
// or as a tag annotation.
func (m *optOutMatcher) matches(item post.SourceItem) bool {
	if m.pattern.MatchString(item.Text) {
		return true
	}
	text := []byte(item.Text)
	for _, a := range item.Annotations {
		if a.Kind != post.AnnotationTag || a.Start < 0 || a.End > len(text) || a.Start >= a.End {
			continue
		}
		if strings.ToLower(strings.TrimPrefix(string(text[a.Start:a.End]), "#")) == m.tag {
			return true
		}
	}
	return false
}
