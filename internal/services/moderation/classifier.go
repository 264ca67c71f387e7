package moderation

import (
	"strings"
)

// MatchKeyword scans the group's denylist in insertion order and returns
// the first keyword contained in the message text. Matching is
// case-insensitive raw substring containment, not word-boundary aware:
// a short keyword can match inside an unrelated word. The warning shown
// to users names the first matching keyword, so ordering matters.
func MatchKeyword(text string, keywords []string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, keyword) {
			return keyword, true
		}
	}
	return "", false
}
