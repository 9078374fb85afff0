package httpclient

import (
	"net/http"
	"time"
)

// parseSetCookies parses every Set-Cookie header line into a
// structured Cookie (spec §4.1), resolving expiry via Expires or
// Max-Age per RFC 6265: when both are set, Max-Age wins.
// http.Header.Values preserves multi-valued Set-Cookie as the spec
// requires; (*http.Response).Cookies() parses the lines (via a
// synthetic Response carrying just the header) rather than a
// reimplemented parser, and the precedence is applied below.
func parseSetCookies(raw []string) []Cookie {
	header := http.Header{"Set-Cookie": raw}
	parsed := (&http.Response{Header: header}).Cookies()

	cookies := make([]Cookie, 0, len(parsed))
	for _, c := range parsed {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.MaxAge != 0 {
			expires := time.Now().UTC().Add(time.Duration(c.MaxAge) * time.Second)
			cookie.Expires = &expires
		} else if !c.Expires.IsZero() {
			expires := c.Expires
			cookie.Expires = &expires
		}
		cookies = append(cookies, cookie)
	}
	return cookies
}
