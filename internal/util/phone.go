package util

import (
	"regexp"
	"strings"
)

var phoneJunk = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone strips separators and rewrites Myanmar local numbers into E.164-like form.
// Anything it does not recognise is returned with only separators removed.
func NormalizePhone(raw string) string {
	s := phoneJunk.ReplaceAllString(strings.TrimSpace(raw), "")

	switch {
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case strings.HasPrefix(s, "09") && len(s) >= 9 && len(s) <= 11:
		s = "+959" + s[2:]
	case strings.HasPrefix(s, "959") && len(s) >= 10:
		s = "+" + s
	}

	return s
}
