package util

import (
	"net/url"
	"regexp"
	"strings"
)

// AppendUTM tags a link with click-source attribution parameters. Existing
// query parameters are preserved and the utm_* order is stable:
// source, medium, campaign.
func AppendUTM(link, source, medium, campaign string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}

	utm := "utm_source=" + url.QueryEscape(source) +
		"&utm_medium=" + url.QueryEscape(medium) +
		"&utm_campaign=" + url.QueryEscape(campaign)
	if u.RawQuery == "" {
		u.RawQuery = utm
	} else {
		u.RawQuery += "&" + utm
	}

	return u.String()
}

// SearchName reduces an author name to the form used in mention searches:
// the last name only, or the full name when it is a single word.
func SearchName(author string) string {
	fields := strings.Fields(author)
	if len(fields) <= 1 {
		return strings.TrimSpace(author)
	}
	return fields[len(fields)-1]
}

var digitRun = regexp.MustCompile(`[0-9]{4,}`)

// SuspiciousUsername reports whether a username looks like a bot or spam
// account: missing entirely, or containing 4+ consecutive digits.
func SuspiciousUsername(username string) bool {
	if username == "" {
		return true
	}
	return digitRun.MatchString(username)
}
