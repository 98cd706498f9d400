package sheets

import (
	"net/url"
	"regexp"
	"strings"
)

// editURL matches a spreadsheet's browser URL:
// https://docs.google.com/spreadsheets/d/<id>/edit#gid=<gid>
var editURL = regexp.MustCompile(`^https://docs\.google\.com/spreadsheets/d/([A-Za-z0-9_-]+)/(?:edit|view)`)

// NormalizeURL rewrites a spreadsheet edit link into its CSV export link.
// Published links (".../pub?output=csv") and other URLs are returned as-is.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	m := editURL.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}

	gid := ""
	if u, err := url.Parse(raw); err == nil {
		gid = u.Query().Get("gid")
		if gid == "" {
			if frag, err := url.ParseQuery(u.Fragment); err == nil {
				gid = frag.Get("gid")
			}
		}
	}

	out := "https://docs.google.com/spreadsheets/d/" + m[1] + "/export?format=csv"
	if gid != "" {
		out += "&gid=" + url.QueryEscape(gid)
	}
	return out
}

// IsCSVURL reports whether raw looks like a URL that yields CSV.
func IsCSVURL(raw string) bool {
	u, err := url.Parse(NormalizeURL(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	q := u.Query()
	return q.Get("output") == "csv" || q.Get("format") == "csv" ||
		strings.HasSuffix(strings.ToLower(u.Path), ".csv")
}
