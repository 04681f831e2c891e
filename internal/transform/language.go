package transform

import (
	"strings"

	"golang.org/x/text/language"
)

// Language returns the ISO 639 base of the first language tag, or "" when
// tags is empty or the first tag cannot be parsed.
func Language(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	tag, err := language.Parse(strings.TrimSpace(tags[0]))
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	if s := base.String(); s != "und" {
		return s
	}
	return ""
}
