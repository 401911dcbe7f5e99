package gen

import (
	"regexp"
	"strings"
)

var (
	placeholderRe = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)
	spacesRe      = regexp.MustCompile(`  +`)
)

// Fill substitutes {key} placeholders in template from values. A
// placeholder with no matching key is dropped. Space runs left behind
// by dropped placeholders collapse to a single space.
func Fill(template string, values map[string]string) string {
	out := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		if v, ok := values[m[1:len(m)-1]]; ok {
			return v
		}
		return ""
	})
	out = spacesRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
