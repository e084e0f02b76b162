// Package handles finds messaging-handle mentions in member profiles.
package handles

import (
	"regexp"
	"sort"
)

// A handle token is a run of word characters, dots and hyphens that ends in a
// word character. Trailing dots and hyphens belong to the surrounding prose.
const token = `([\w.\-]+\w)`

var (
	atMention   = regexp.MustCompile(`@` + token)
	linkMention = regexp.MustCompile(`t\.me/` + token)
)

// Find scans text for "@handle" and "t.me/handle" mentions and returns the
// distinct handles, compared case-sensitively, in sorted order.
func Find(text string) []string {
	set := make(map[string]struct{})
	collect(text, set)
	return sorted(set)
}

func collect(text string, set map[string]struct{}) {
	for _, re := range []*regexp.Regexp{atMention, linkMention} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			set[m[1]] = struct{}{}
		}
	}
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
