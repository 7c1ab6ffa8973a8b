// Package extract finds candidate issue-identifier tokens in free-text
// change messages.
package extract

import (
	"regexp"
	"strings"
)

// Logger receives diagnostics about pattern misconfiguration. Satisfied by
// output.UI.
type Logger interface {
	Warning(format string, a ...any)
}

// Tokens returns every token captured by pattern in text, upper-cased, in
// order of appearance. Matching is exhaustive and non-overlapping.
//
// The pattern must define at least one capturing group; the first group is
// the token. A pattern without a capturing group is a configuration error,
// not a match failure: it yields no tokens and logs a single warning so
// the scan can continue for subsequent messages and builds.
func Tokens(text string, pattern *regexp.Regexp, log Logger) []string {
	if pattern.NumSubexp() < 1 {
		if log != nil {
			log.Warning("issue pattern %q doesn't define a capturing group, no issue ids will be found", pattern.String())
		}
		return nil
	}

	var tokens []string
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			tokens = append(tokens, strings.ToUpper(m[1]))
		}
	}
	return tokens
}
