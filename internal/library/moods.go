package library

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeMoods splits comma separated mood tags, lower-casing and de-duplicating them in first-seen order.
func NormalizeMoods(raw ...string) []string {
	lower := cases.Lower(language.Und)
	seen := map[string]bool{}
	moods := []string{}
	for _, chunk := range raw {
		for _, m := range strings.Split(chunk, ",") {
			m = lower.String(strings.Join(strings.Fields(m), " "))
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			moods = append(moods, m)
		}
	}
	return moods
}

// MoodLabel renders a stored mood for display.
func MoodLabel(mood string) string {
	return cases.Title(language.Und).String(mood)
}
