package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// CleanText applies NFKC normalization and collapses runs of whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// ResolveURL resolves href against base. Fragments and non-http(s) targets
// (javascript:, mailto:) yield "".
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	u := b.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// CanonicalLink is the identity form of a job link: scheme and host
// lower-cased, query and fragment dropped, trailing slash removed.
func CanonicalLink(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	path := strings.TrimRight(u.EscapedPath(), "/")
	u.RawPath = ""
	u.Path = ""
	return u.Scheme + "://" + u.Host + path
}

var (
	relativeAgo = regexp.MustCompile(`(\d+)\s*\+?\s*(minute|min|hour|hr|day|week|month|year)s?\s+ago`)
	isoDate     = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02/01/2006",
}

// ParseRelativeDate converts "today", "yesterday" and "N unit(s) ago" to an
// ISO date relative to ref. Absolute dates are normalized to YYYY-MM-DD.
// Anything else is returned cleaned but otherwise unchanged.
func ParseRelativeDate(text string, ref time.Time) string {
	cleaned := CleanText(text)
	if cleaned == "" {
		return ""
	}
	stripped := cleaned
	for _, prefix := range []string{"posted on", "posted", "active"} {
		if strings.HasPrefix(strings.ToLower(stripped), prefix) {
			stripped = strings.TrimSpace(stripped[len(prefix):])
			stripped = strings.TrimSpace(strings.TrimPrefix(stripped, ":"))
			break
		}
	}
	lower := strings.ToLower(stripped)
	day := ref.UTC()
	switch {
	case strings.Contains(lower, "today"), strings.Contains(lower, "just now"):
		return day.Format("2006-01-02")
	case strings.Contains(lower, "yesterday"):
		return day.AddDate(0, 0, -1).Format("2006-01-02")
	}
	if m := relativeAgo.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			switch m[2] {
			case "minute", "min", "hour", "hr":
				return day.Add(-time.Duration(n) * unitDuration(m[2])).Format("2006-01-02")
			case "day":
				return day.AddDate(0, 0, -n).Format("2006-01-02")
			case "week":
				return day.AddDate(0, 0, -7*n).Format("2006-01-02")
			case "month":
				return day.AddDate(0, -n, 0).Format("2006-01-02")
			case "year":
				return day.AddDate(-n, 0, 0).Format("2006-01-02")
			}
		}
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, stripped); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if m := isoDate.FindStringSubmatch(cleaned); m != nil {
		return m[1]
	}
	return cleaned
}

func unitDuration(unit string) time.Duration {
	if unit == "minute" || unit == "min" {
		return time.Minute
	}
	return time.Hour
}
