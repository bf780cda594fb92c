package searchindex

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// ValidLocation reports whether s is a well-formed relative URL fragment:
// a page path with an optional "#anchor", no scheme, no host, no leading slash.
func ValidLocation(s string) bool {
	if len(s) == 0 || strings.HasPrefix(s, "/") {
		return false
	}
	if strings.Count(s, "#") > 1 {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}

	u, err := url.Parse(s)
	if err != nil {
		return false
	}

	return u.Scheme == "" && u.Host == "" && u.User == nil
}

var (
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugDisallowed = regexp.MustCompile(`[^\p{L}\p{P}\d\-]+`)
	slugDashes     = regexp.MustCompile(`\-\-+`)
)

// Slugify turns a heading into the anchor label used in section locations,
// e.g. "Spline creation & evaluation" -> "Spline-creation-and-evaluation".
func Slugify(heading string) string {
	s := slugWhitespace.ReplaceAllString(heading, "-")
	s = strings.ReplaceAll(s, "&", "-and-")
	s = slugDisallowed.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
