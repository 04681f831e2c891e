package transform

import "strings"

// labelWarnings maps self-label values to content-warning text. Order is
// significant: warnings are joined in table order.
var labelWarnings = []struct {
	label   string
	warning string
}{
	{"porn", "NSFW - Adult Content"},
	{"sexual", "Sexual Content"},
	{"nudity", "Nudity"},
	{"graphic-media", "Graphic Media"},
	{"gore", "Graphic Violence"},
}

// ContentWarning returns the spoiler text for a set of self-labels, or ""
// when none of them is a known sensitive-content label.
func ContentWarning(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	present := make(map[string]bool, len(labels))
	for _, l := range labels {
		present[strings.ToLower(strings.TrimSpace(l))] = true
	}
	var warnings []string
	seen := map[string]bool{}
	for _, entry := range labelWarnings {
		if present[entry.label] && !seen[entry.warning] {
			seen[entry.warning] = true
			warnings = append(warnings, entry.warning)
		}
	}
	return strings.Join(warnings, ", ")
}
